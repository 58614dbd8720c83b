package models

import (
	"fmt"
	"math"
	"time"
)

// MinSamples is the smallest window the engine will analyse.
const MinSamples = 50

// MarketSample represents an OHLCV record supplied by the market-data provider.
type MarketSample struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ReturnSeries holds log returns r_i = ln(C_i / C_{i-1}); len = samples - 1.
type ReturnSeries []float64

// AnalysisWindow is the immutable input of one analysis.
type AnalysisWindow struct {
	symbol    string
	timeframe string
	samples   []MarketSample
}

// NewAnalysisWindow validates and copies samples into a window.
// Samples must be strictly ordered by timestamp, with finite positive closes
// and finite non-negative volumes.
func NewAnalysisWindow(symbol, timeframe string, samples []MarketSample) (*AnalysisWindow, error) {
	if len(samples) < MinSamples {
		return nil, fmt.Errorf("%w: got %d samples, need at least %d", ErrInsufficientData, len(samples), MinSamples)
	}
	for i, smp := range samples {
		if err := checkSample(smp); err != nil {
			return nil, fmt.Errorf("%w at index %d: %v", ErrInvalidSample, i, err)
		}
		if i > 0 && !smp.Timestamp.After(samples[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: not strictly ordered at index %d (%s <= %s)", ErrInvalidSample,
				i, smp.Timestamp.Format(time.RFC3339), samples[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	cp := make([]MarketSample, len(samples))
	copy(cp, samples)
	return &AnalysisWindow{symbol: symbol, timeframe: timeframe, samples: cp}, nil
}

func checkSample(s MarketSample) error {
	switch {
	case math.IsNaN(s.Close) || math.IsInf(s.Close, 0):
		return fmt.Errorf("close %v is not finite", s.Close)
	case s.Close <= 0:
		return fmt.Errorf("close %v is not positive", s.Close)
	case math.IsNaN(s.Volume) || math.IsInf(s.Volume, 0):
		return fmt.Errorf("volume %v is not finite", s.Volume)
	case s.Volume < 0:
		return fmt.Errorf("volume %v is negative", s.Volume)
	}
	return nil
}

func (w *AnalysisWindow) Symbol() string    { return w.symbol }
func (w *AnalysisWindow) Timeframe() string { return w.timeframe }
func (w *AnalysisWindow) Len() int          { return len(w.samples) }

// Samples returns a copy of the window's samples.
func (w *AnalysisWindow) Samples() []MarketSample {
	out := make([]MarketSample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Info summarises the window for the report.
func (w *AnalysisWindow) Info() WindowInfo {
	return WindowInfo{
		Timeframe:   w.timeframe,
		Start:       w.samples[0].Timestamp.UTC(),
		End:         w.samples[len(w.samples)-1].Timestamp.UTC(),
		SampleCount: len(w.samples),
	}
}

// WindowInfo is the serialisable summary of an AnalysisWindow.
type WindowInfo struct {
	Timeframe   string    `json:"timeframe"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	SampleCount int       `json:"sampleCount"`
}

// Series is the derived, read-only view every detector receives.
// Detectors must not modify the slices.
type Series struct {
	Symbol    string
	Timeframe string
	Times     []time.Time
	Closes    []float64
	Volumes   []float64
	Returns   ReturnSeries
}
