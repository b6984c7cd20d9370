package model

import "strconv"

// Bar is an OHLCV aggregate over the half-open interval
// [StartTime, StartTime + Timeframe.Millis()).
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	StartTime int64     `json:"start_time"` // ms, aligned to the timeframe
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns the unique identity of a bar: at most one bar exists per key;
// re-emission replaces the previous row.
func (b *Bar) Key() string {
	return b.Symbol + ":" + string(b.Timeframe) + ":" + strconv.FormatInt(b.StartTime, 10)
}
