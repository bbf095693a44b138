package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/store"
	"github.com/ibeckermayer/feedrelay/internal/types"
)

// Deliverer hands a batch to its destination. A nil error means the whole
// batch was accepted.
type Deliverer interface {
	Deliver(ctx context.Context, records []types.Record) error
}

// ErrInvalidBody is wrapped by a DeliveryError when a 2xx response is not JSON.
var ErrInvalidBody = errors.New("response body is not JSON")

// DeliveryError describes a failed delivery to the HTTP endpoint.
type DeliveryError struct {
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("delivery failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("delivery failed with status %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("delivery failed with status %d: %s", e.StatusCode, e.Body)
	}
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// HTTPDeliverer POSTs batches as a JSON array to an endpoint.
// It sets no timeout and no retries; a failed batch is retried by the queue.
type HTTPDeliverer struct {
	client   *resty.Client
	endpoint string
}

// NewHTTPDeliverer creates a deliverer for endpoint.
func NewHTTPDeliverer(endpoint string) *HTTPDeliverer {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	return &HTTPDeliverer{client: client, endpoint: endpoint}
}

// Deliver succeeds on a 2xx response with a JSON body.
func (d *HTTPDeliverer) Deliver(ctx context.Context, records []types.Record) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(records).
		Post(d.endpoint)
	if err != nil {
		return &DeliveryError{Err: err}
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		return &DeliveryError{StatusCode: resp.StatusCode(), Body: string(body)}
	}
	if !json.Valid(body) {
		return &DeliveryError{StatusCode: resp.StatusCode(), Body: string(body), Err: ErrInvalidBody}
	}
	return nil
}

// RecordSaver is the persistence side of a StoreDeliverer.
type RecordSaver interface {
	SaveRecords(ctx context.Context, records []types.Record) error
}

// StoreDeliverer writes batches to local persistence, overwriting by id.
type StoreDeliverer struct {
	saver RecordSaver
}

func NewStoreDeliverer(saver RecordSaver) *StoreDeliverer {
	return &StoreDeliverer{saver: saver}
}

func (d *StoreDeliverer) Deliver(ctx context.Context, records []types.Record) error {
	if err := d.saver.SaveRecords(ctx, records); err != nil {
		return fmt.Errorf("failed to persist batch: %w", err)
	}
	return nil
}

// CachingDeliverer archives every delivered batch as JSON in dir.
// Archive failures are logged and never fail the delivery.
type CachingDeliverer struct {
	next Deliverer
	dir  string
	log  *zap.Logger
}

func WithBatchCache(next Deliverer, dir string, log *zap.Logger) *CachingDeliverer {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachingDeliverer{next: next, dir: dir, log: log}
}

func (d *CachingDeliverer) Deliver(ctx context.Context, records []types.Record) error {
	if err := d.next.Deliver(ctx, records); err != nil {
		return err
	}
	path, err := store.SaveBatch(d.dir, uuid.NewString(), records)
	if err != nil {
		d.log.Warn("failed to cache batch", zap.Error(err))
		return nil
	}
	d.log.Debug("batch cached", zap.String("path", path), zap.Int("records", len(records)))
	return nil
}
