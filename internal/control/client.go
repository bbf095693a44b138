package control

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ibeckermayer/feedrelay/internal/session"
)

// Client talks to a running control server.
type Client struct {
	resty *resty.Client
}

// NewClient creates a client for the server at addr ("host:port" or a URL).
func NewClient(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		resty: resty.New().
			SetBaseURL(base).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// Send delivers a message and returns the session's reply.
func (c *Client) Send(ctx context.Context, msg session.Message) (session.Response, error) {
	var out session.Response
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(msg).
		SetResult(&out).
		Post("/message")
	if err != nil {
		return out, fmt.Errorf("failed to reach control server: %w", err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("control server returned %d: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}

// SetAutoSave toggles scroll-triggered scanning.
func (c *Client) SetAutoSave(ctx context.Context, enabled bool) (session.Response, error) {
	return c.Send(ctx, session.Message{Action: session.ActionToggleAutoSave, Enabled: enabled})
}

// Status fetches the session status.
func (c *Client) Status(ctx context.Context) (session.Status, error) {
	var out session.Status
	resp, err := c.resty.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/status")
	if err != nil {
		return out, fmt.Errorf("failed to reach control server: %w", err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("control server returned %d: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}
