package api

import (
	"context"
	"time"
)

// QueryTimeout is the default timeout for database queries. Store calls
// are expected to fail fast rather than block a request indefinitely.
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with the query timeout applied
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}
