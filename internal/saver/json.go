package saver

import (
	"encoding/json"
	"fmt"
	"io"

	"metrix/internal/model"
)

// JSONFormat stores results as an indented JSON array of row objects.
type JSONFormat struct{}

func (JSONFormat) Extension() string { return "json" }

func (JSONFormat) Save(w io.Writer, bars []model.Bar) error {
	if bars == nil {
		bars = []model.Bar{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bars)
}

func (JSONFormat) Load(data []byte) ([]model.Bar, error) {
	var bars []model.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	if bars == nil {
		return nil, fmt.Errorf("read json: not an array")
	}
	for i := range bars {
		bars[i].Timestamp = bars[i].Timestamp.UTC()
	}
	return bars, nil
}
