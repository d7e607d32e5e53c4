package model

import "time"

// Bar represents one OHLCV aggregate (minute/daily etc.).
// Shared by provider, saver and the history fetcher; a []Bar is one tabular result.
type Bar struct {
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	VWAP         float64   `json:"vwap"`      // Volume weighted average price
	Timestamp    time.Time `json:"timestamp"` // Start of the bucket, always UTC
	Transactions int64     `json:"transactions"`
}

// Columns lists the column names of a tabular result in order.
var Columns = []string{"open", "high", "low", "close", "volume", "vwap", "timestamp", "transactions"}

// MillisToTime converts a Unix millisecond timestamp to a UTC time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
