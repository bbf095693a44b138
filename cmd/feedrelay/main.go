// Command feedrelay relays posts from the X.com home feed to a local
// endpoint or database as they scroll past.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
