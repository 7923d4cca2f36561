package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/genesis-core/genesis-core/internal/candle"
	cerrors "github.com/genesis-core/genesis-core/internal/errors"
)

// loadCandles reads a JSON array of time-sorted OHLCV bars (timestamps
// in ms, UTC) and returns the bars whose timestamp falls within
// [startMS, endMS], inclusive. An empty bound (0) on either side is
// unbounded.
func loadCandles(path string, startMS, endMS int64) ([]candle.Candle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.FatalData("failed to read candle file", err)
	}
	var bars []candle.Candle
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, cerrors.FatalData("failed to parse candle file JSON", err)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TimestampMS < bars[j].TimestampMS })

	filtered := bars[:0]
	for _, b := range bars {
		if startMS != 0 && b.TimestampMS < startMS {
			continue
		}
		if endMS != 0 && b.TimestampMS > endMS {
			continue
		}
		filtered = append(filtered, b)
	}
	if _, err := candle.NewSeries(filtered); err != nil {
		return nil, cerrors.FatalData("candle series failed validation", err)
	}
	return filtered, nil
}

// loadRuntimeConfigDoc reads the runtime config file as a plain JSON
// document, the same shape internal/config.Load validates.
func loadRuntimeConfigDoc(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.FatalConfig("failed to read config file", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cerrors.FatalConfig("failed to parse config file JSON", err)
	}
	return doc, nil
}
