package model

import "fmt"

// Timeframe is an enumerated bar resolution.
type Timeframe string

const (
	TF1s Timeframe = "1s"
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"

	// TFTick marks analytics snapshots computed straight from the tick
	// buffer rather than from resampled bars.
	TFTick Timeframe = "tick"
)

// timeframeMillis maps each bar timeframe to its bucket width in ms.
var timeframeMillis = map[Timeframe]int64{
	TF1s: 1_000,
	TF1m: 60_000,
	TF5m: 300_000,
}

// ParseTimeframe validates a timeframe string. Unknown values are a
// configuration error and rejected.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeMillis[tf]; !ok {
		return "", fmt.Errorf("invalid timeframe: %q", s)
	}
	return tf, nil
}

// Millis returns the bucket width in milliseconds, or 0 for non-bar
// timeframes such as TFTick.
func (tf Timeframe) Millis() int64 {
	return timeframeMillis[tf]
}
