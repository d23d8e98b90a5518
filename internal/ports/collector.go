package ports

import "context"

// Collector owns the ingestion endpoint. Start returns once the endpoint is
// bound and the receive loop is running; Stop unblocks any pending read and
// waits for the loop to exit.
type Collector interface {
	Start(ctx context.Context) error
	Stop() error
}
