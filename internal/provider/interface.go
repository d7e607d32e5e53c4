package provider

import (
	"context"

	"metrix/internal/model"
	"metrix/internal/query"
)

// DataProvider is the abstraction used by the history fetcher when a result
// is not cached. Implementations own their transport and resource cleanup.
type DataProvider interface {
	GetName() string
	FetchAggregates(ctx context.Context, req query.Request) ([]model.Bar, error)
	Close() error
}
