package saver

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"metrix/internal/model"
)

// parquetRow is the on-disk schema. The timestamp column is annotated as
// TIMESTAMP(MILLIS) so readers outside this module see a point in time.
type parquetRow struct {
	Open         float64 `parquet:"open"`
	High         float64 `parquet:"high"`
	Low          float64 `parquet:"low"`
	Close        float64 `parquet:"close"`
	Volume       float64 `parquet:"volume"`
	VWAP         float64 `parquet:"vwap"`
	Timestamp    int64   `parquet:"timestamp,timestamp(millisecond)"`
	Transactions int64   `parquet:"transactions"`
}

// ParquetFormat stores results as a single Parquet file.
type ParquetFormat struct{}

func (ParquetFormat) Extension() string { return "parquet" }

func (ParquetFormat) Save(w io.Writer, bars []model.Bar) error {
	rows := make([]parquetRow, len(bars))
	for i, b := range bars {
		rows[i] = parquetRow{
			Open:         b.Open,
			High:         b.High,
			Low:          b.Low,
			Close:        b.Close,
			Volume:       b.Volume,
			VWAP:         b.VWAP,
			Timestamp:    b.Timestamp.UnixMilli(),
			Transactions: b.Transactions,
		}
	}
	if err := parquet.Write(w, rows); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

func (ParquetFormat) Load(data []byte) ([]model.Bar, error) {
	rows, err := parquet.Read[parquetRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	bars := make([]model.Bar, len(rows))
	for i, r := range rows {
		bars[i] = model.Bar{
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Volume:       r.Volume,
			VWAP:         r.VWAP,
			Timestamp:    model.MillisToTime(r.Timestamp),
			Transactions: r.Transactions,
		}
	}
	return bars, nil
}
