package provider

import (
	"metrix/internal/provider/polygon"
)

// PolygonProvider is a DataProvider implementation backed by the Polygon API.
// It embeds *polygon.Client to expose fetch capabilities with minimal boilerplate.
type PolygonProvider struct {
	*polygon.Client
}

// NewPolygonProvider creates a new Polygon-backed DataProvider.
func NewPolygonProvider(o polygon.Options) (*PolygonProvider, error) {
	client, err := polygon.NewClient(o)
	if err != nil {
		return nil, err
	}
	return &PolygonProvider{
		Client: client,
	}, nil
}

// GetName returns provider name
func (p *PolygonProvider) GetName() string {
	return "Polygon"
}
