package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// PatternType identifies the detector that produced a signal.
type PatternType string

const (
	PatternMeanReversion PatternType = "mean_reversion"
	PatternMomentum      PatternType = "momentum"
	PatternFractal       PatternType = "fractal"
	PatternSeasonality   PatternType = "seasonality"
	PatternVolatility    PatternType = "volatility_clustering"
	PatternRegimeShift   PatternType = "regime_shift"
	PatternAnomaly       PatternType = "anomaly"
	PatternMicrostruct   PatternType = "microstructure"
)

// HighConfidence is the confidence at or above which a signal counts as high confidence.
const HighConfidence = 0.7

// Enum values used in signal parameters for quantities that have no finite value.
const (
	EnumInfinite    = "infinite"
	EnumNegInfinite = "-infinite"
	EnumUndefined   = "undefined"
	EnumDefined     = "defined"
)

// ParamValue is either a finite number or an enum string.
// It encodes to a JSON number or a JSON string respectively.
type ParamValue struct {
	num    float64
	enum   string
	isEnum bool
}

// Num builds a numeric parameter. Non-finite values are stored as enums.
func Num(v float64) ParamValue {
	switch {
	case math.IsNaN(v):
		return Enum(EnumUndefined)
	case math.IsInf(v, 1):
		return Enum(EnumInfinite)
	case math.IsInf(v, -1):
		return Enum(EnumNegInfinite)
	}
	return ParamValue{num: v}
}

// Enum builds an enum parameter.
func Enum(s string) ParamValue { return ParamValue{enum: s, isEnum: true} }

// Float returns the numeric value; ok is false for enums.
func (p ParamValue) Float() (float64, bool) { return p.num, !p.isEnum }

// EnumValue returns the enum value; ok is false for numbers.
func (p ParamValue) EnumValue() (string, bool) { return p.enum, p.isEnum }

func (p ParamValue) MarshalJSON() ([]byte, error) {
	if p.isEnum {
		return json.Marshal(p.enum)
	}
	return json.Marshal(p.num)
}

func (p *ParamValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Enum(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("param value: %w", err)
	}
	*p = ParamValue{num: f}
	return nil
}

// PatternSignal is one detector's verdict. Scores are derived from statistics only.
type PatternSignal struct {
	Type           PatternType           `json:"type"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Confidence     float64               `json:"confidence"`
	Exploitability float64               `json:"exploitability"`
	Strength       float64               `json:"strength"`
	Parameters     map[string]ParamValue `json:"parameters"`
	DetectedAt     time.Time             `json:"detectedAt"`
}

// Score is the ranking key: confidence x exploitability x strength.
func (s PatternSignal) Score() float64 {
	return s.Confidence * s.Exploitability * s.Strength
}

// RegimeLabel classifies a regime boundary.
type RegimeLabel string

const (
	RegimeBull        RegimeLabel = "Bull"
	RegimeBear        RegimeLabel = "Bear"
	RegimeBullHighVol RegimeLabel = "Bull HighVol"
	RegimeBearHighVol RegimeLabel = "Bear HighVol"
)

// RegimeSegment starts at StartIndex (an index into the return series).
type RegimeSegment struct {
	StartIndex     int         `json:"startIndex"`
	Label          RegimeLabel `json:"label"`
	StabilityScore float64     `json:"stabilityScore"`
}

// RiskMetrics are computed once per window.
// SharpeRatio is 0 and SharpeDefined false when return stddev is 0.
type RiskMetrics struct {
	Volatility           float64 `json:"volatility"`
	MaxDrawdown          float64 `json:"maxDrawdown"`
	SharpeRatio          float64 `json:"sharpeRatio"`
	SharpeDefined        bool    `json:"sharpeDefined"`
	ValueAtRisk95        float64 `json:"valueAtRisk95"`
	AggregatePatternRisk float64 `json:"aggregatePatternRisk"`
}

// PatternReport is the authoritative output of an analysis.
type PatternReport struct {
	ID             string            `json:"id"`
	Symbol         string            `json:"symbol"`
	Window         WindowInfo        `json:"window"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	Signals        []PatternSignal   `json:"signals"`
	RiskMetrics    RiskMetrics       `json:"riskMetrics"`
	RegimeSegments []RegimeSegment   `json:"regimeSegments"`
	DetectorErrors map[string]string `json:"detectorErrors,omitempty"`
}

// HistoryEntry summarises the report for the history log.
func (r *PatternReport) HistoryEntry() PatternHistoryEntry {
	high := 0
	for _, s := range r.Signals {
		if s.Confidence >= HighConfidence {
			high++
		}
	}
	return PatternHistoryEntry{
		Symbol:              r.Symbol,
		PatternsFound:       len(r.Signals),
		HighConfidenceCount: high,
		Timestamp:           r.GeneratedAt,
	}
}

// PatternHistoryEntry is appended once per completed report and never mutated.
type PatternHistoryEntry struct {
	Symbol              string    `json:"symbol"`
	PatternsFound       int       `json:"patternsFound"`
	HighConfidenceCount int       `json:"highConfidenceCount"`
	Timestamp           time.Time `json:"timestamp"`
}

// AnalysisResult pairs a report with optional prose from the narrative service.
type AnalysisResult struct {
	Report    *PatternReport `json:"report"`
	Narrative string         `json:"narrative,omitempty"`
}
