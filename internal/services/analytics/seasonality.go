package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/features"
)

// SeasonalBucket is the average return between consecutive samples that share
// the same hour, weekday or month.
type SeasonalBucket struct {
	Kind        string
	Key         int
	Occurrences int
	MeanReturn  float64
	TStat       float64
	TDefined    bool
}

type bucketKind struct {
	name string
	key  func(time.Time) int
}

var seasonKinds = []bucketKind{
	{"hour", func(t time.Time) int { return t.Hour() }},
	{"weekday", func(t time.Time) int { return int(t.Weekday()) }},
	{"month", func(t time.Time) int { return int(t.Month()) }},
}

// SeasonalBuckets groups samples by UTC hour, weekday and month.
// Buckets seen fewer than twice are omitted. Output is ordered by kind then key.
func SeasonalBuckets(times []time.Time, closes []float64) []SeasonalBucket {
	var out []SeasonalBucket
	for _, k := range seasonKinds {
		idx := make(map[int][]int)
		for i, t := range times {
			key := k.key(t.UTC())
			idx[key] = append(idx[key], i)
		}
		keys := make([]int, 0, len(idx))
		for key := range idx {
			keys = append(keys, key)
		}
		sort.Ints(keys)
		for _, key := range keys {
			occ := idx[key]
			if len(occ) < 2 {
				continue
			}
			rets := make([]float64, 0, len(occ)-1)
			for j := 1; j < len(occ); j++ {
				prev, cur := closes[occ[j-1]], closes[occ[j]]
				if prev <= 0 || cur <= 0 {
					continue
				}
				rets = append(rets, math.Log(cur/prev))
			}
			if len(rets) == 0 {
				continue
			}
			b := SeasonalBucket{Kind: k.name, Key: key, Occurrences: len(occ), MeanReturn: features.Mean(rets)}
			if sd, ok := features.StdDev(rets); ok {
				b.TStat = b.MeanReturn / (sd / math.Sqrt(float64(len(rets))))
				b.TDefined = true
			}
			out = append(out, b)
		}
	}
	return out
}

type SeasonalityDetector struct{}

func NewSeasonalityDetector() *SeasonalityDetector { return &SeasonalityDetector{} }

func (d *SeasonalityDetector) Type() models.PatternType { return models.PatternSeasonality }
func (d *SeasonalityDetector) Name() string             { return "calendar_buckets" }

func (d *SeasonalityDetector) Detect(s *models.Series) (models.PatternSignal, error) {
	at := detectedAt(s)
	buckets := SeasonalBuckets(s.Times, s.Closes)

	best := -1
	for i, b := range buckets {
		if !b.TDefined {
			continue
		}
		if best < 0 || math.Abs(b.TStat) > math.Abs(buckets[best].TStat) {
			best = i
		}
	}
	sd, sdOK := features.StdDev(s.Returns)
	if best < 0 || !sdOK {
		params := map[string]models.ParamValue{
			"bucketCount": models.Num(float64(len(buckets))),
		}
		sig := newSignal(d.Type(), d.Name(), "no seasonal bucket with variance", 0, 0, 0, params, at)
		return sig, fmt.Errorf("%w: no seasonal bucket with variance", models.ErrDegenerateInput)
	}

	b := buckets[best]
	conf := features.Clamp01(math.Abs(b.TStat) / 4)
	expl := conf * math.Min(1, float64(b.Occurrences)/10)
	params := map[string]models.ParamValue{
		"bucketKind":  models.Enum(b.Kind),
		"bucketKey":   models.Num(float64(b.Key)),
		"meanReturn":  models.Num(b.MeanReturn),
		"tStat":       models.Num(b.TStat),
		"occurrences": models.Num(float64(b.Occurrences)),
		"bucketCount": models.Num(float64(len(buckets))),
	}
	desc := fmt.Sprintf("%s %d: mean return %.5f over %d occurrences (t %.2f)", b.Kind, b.Key, b.MeanReturn, b.Occurrences, b.TStat)
	return newSignal(d.Type(), d.Name(), desc, conf, expl, math.Abs(b.MeanReturn)/sd, params, at), nil
}

var _ domsvc.PatternDetector = (*SeasonalityDetector)(nil)
