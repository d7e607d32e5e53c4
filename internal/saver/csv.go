package saver

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"metrix/internal/model"
)

// CSVFormat stores results as CSV with header open,high,low,close,volume,vwap,timestamp,transactions.
// Timestamps are RFC3339 with milliseconds in UTC.
type CSVFormat struct{}

const csvTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func (CSVFormat) Extension() string { return "csv" }

func (CSVFormat) Save(w io.Writer, bars []model.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.Columns); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
			floatStr(b.Volume),
			floatStr(b.VWAP),
			b.Timestamp.UTC().Format(csvTimeLayout),
			strconv.FormatInt(b.Transactions, 10),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (CSVFormat) Load(data []byte) ([]model.Bar, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(model.Columns)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: missing header")
	}
	for i, name := range model.Columns {
		if records[0][i] != name {
			return nil, fmt.Errorf("read csv: column %d is %q, want %q", i, records[0][i], name)
		}
	}

	bars := make([]model.Bar, 0, len(records)-1)
	for line, rec := range records[1:] {
		b, err := parseCSVRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("read csv: line %d: %w", line+2, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseCSVRecord(rec []string) (model.Bar, error) {
	var (
		b   model.Bar
		err error
	)
	floats := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.VWAP}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(rec[i], 64); err != nil {
			return b, fmt.Errorf("%s: %w", model.Columns[i], err)
		}
	}
	ts, err := time.Parse(csvTimeLayout, rec[6])
	if err != nil {
		return b, fmt.Errorf("timestamp: %w", err)
	}
	b.Timestamp = ts.UTC()
	if b.Transactions, err = strconv.ParseInt(rec[7], 10, 64); err != nil {
		return b, fmt.Errorf("transactions: %w", err)
	}
	return b, nil
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
