package resampler

import (
	"reflect"
	"testing"

	"pairstream/internal/model"
)

func tick(ts int64, price, qty float64) model.Tick {
	return model.Tick{Timestamp: ts, Symbol: "BTCUSDT", Price: price, Quantity: qty}
}

func TestResampleOneSecondBars(t *testing.T) {
	ticks := []model.Tick{
		tick(1000, 100, 1),
		tick(1400, 101, 2),
		tick(1900, 99, 1),
		tick(2100, 102, 3),
	}

	bars := Resample(ticks, "BTCUSDT", model.TF1s)
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}

	want0 := model.Bar{
		Symbol: "BTCUSDT", Timeframe: model.TF1s, StartTime: 1000,
		Open: 100, High: 101, Low: 99, Close: 99, Volume: 4,
	}
	if !reflect.DeepEqual(bars[0], want0) {
		t.Errorf("bar[0] = %+v, want %+v", bars[0], want0)
	}

	want1 := model.Bar{
		Symbol: "BTCUSDT", Timeframe: model.TF1s, StartTime: 2000,
		Open: 102, High: 102, Low: 102, Close: 102, Volume: 3,
	}
	if !reflect.DeepEqual(bars[1], want1) {
		t.Errorf("bar[1] = %+v, want %+v", bars[1], want1)
	}
}

func TestResampleSkipsEmptyBuckets(t *testing.T) {
	// Ticks at second 1 and second 5: no bars for seconds 2-4.
	ticks := []model.Tick{
		tick(1000, 100, 1),
		tick(5500, 105, 1),
	}

	bars := Resample(ticks, "BTCUSDT", model.TF1s)
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].StartTime != 1000 || bars[1].StartTime != 5000 {
		t.Errorf("start times = %d, %d", bars[0].StartTime, bars[1].StartTime)
	}
}

func TestResampleFiltersOtherSymbols(t *testing.T) {
	ticks := []model.Tick{
		tick(1000, 100, 1),
		{Timestamp: 1100, Symbol: "ETHUSDT", Price: 50, Quantity: 1},
	}

	bars := Resample(ticks, "BTCUSDT", model.TF1s)
	if len(bars) != 1 {
		t.Fatalf("got %d bars, want 1", len(bars))
	}
	if bars[0].Volume != 1 || bars[0].Low != 100 {
		t.Errorf("foreign symbol leaked into bar: %+v", bars[0])
	}
}

func TestResampleIdempotent(t *testing.T) {
	ticks := []model.Tick{
		tick(60000, 10, 1),
		tick(61000, 11, 1),
		tick(119999, 9, 2),
		tick(120000, 12, 1),
	}

	a := Resample(ticks, "BTCUSDT", model.TF1m)
	b := Resample(ticks, "BTCUSDT", model.TF1m)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("resampling twice differs:\n%+v\n%+v", a, b)
	}
	if len(a) != 2 {
		t.Fatalf("got %d bars, want 2", len(a))
	}
	if a[0].StartTime != 60000 || a[0].Close != 9 || a[0].Volume != 4 {
		t.Errorf("minute bar = %+v", a[0])
	}
}

func TestResampleAll(t *testing.T) {
	ticks := []model.Tick{
		tick(0, 1, 1),
		tick(61000, 2, 1),
	}

	bars := ResampleAll(ticks, "BTCUSDT", []model.Timeframe{model.TF1s, model.TF1m})
	var secs, mins int
	for _, b := range bars {
		switch b.Timeframe {
		case model.TF1s:
			secs++
		case model.TF1m:
			mins++
		}
	}
	if secs != 2 || mins != 2 {
		t.Errorf("got %d 1s bars and %d 1m bars, want 2 and 2", secs, mins)
	}
}

func TestResampleEmptyInput(t *testing.T) {
	if bars := Resample(nil, "BTCUSDT", model.TF1s); bars != nil {
		t.Errorf("Resample(nil) = %v, want nil", bars)
	}
}
