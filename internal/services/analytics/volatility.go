package analytics

import (
	"fmt"
	"math"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/features"
)

const volOfVolWindow = 10

func squares(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * v
	}
	return out
}

// VolatilityClustering is the lag-1 autocorrelation of squared returns.
func VolatilityClustering(returns []float64) float64 {
	acf := features.Autocorrelation(squares(returns), 1)
	if len(acf) == 0 {
		return 0
	}
	return acf[0]
}

// GARCHMoments estimates GARCH(1,1) alpha and beta by matching the lag-1 and
// lag-2 autocorrelations of squared returns. It falls back to ARCH(1) when no
// GARCH solution matches.
func GARCHMoments(returns []float64) (alpha, beta float64) {
	acf := features.Autocorrelation(squares(returns), 2)
	if len(acf) < 2 {
		return 0, 0
	}
	return garchFromACF(acf[0], acf[1])
}

func garchFromACF(rho1, rho2 float64) (alpha, beta float64) {
	if rho1 <= 0 {
		return 0, 0
	}
	phi := rho2 / rho1
	if rho1 < phi && phi < 1 {
		a := phi - rho1
		b := 1 - phi*phi
		c := -rho1 * (1 - phi*phi)
		alpha = (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
		beta = math.Max(0, phi-alpha)
		return alpha, beta
	}
	return math.Min(rho1, 0.999), 0
}

// VolOfVol is the stddev of the rolling 10-bar return stddev.
func VolOfVol(returns []float64) float64 {
	sd, _ := features.StdDev(features.RollingStdDev(returns, volOfVolWindow))
	return sd
}

type VolatilityDetector struct{}

func NewVolatilityDetector() *VolatilityDetector { return &VolatilityDetector{} }

func (d *VolatilityDetector) Type() models.PatternType { return models.PatternVolatility }
func (d *VolatilityDetector) Name() string             { return "garch_clustering" }

func (d *VolatilityDetector) Detect(s *models.Series) (models.PatternSignal, error) {
	at := detectedAt(s)
	sd, ok := features.StdDev(s.Returns)
	if !ok {
		params := map[string]models.ParamValue{
			"alpha": models.Num(0),
			"beta":  models.Num(0),
		}
		sig := newSignal(d.Type(), d.Name(), "no return variance", 0, 0, 0, params, at)
		return sig, fmt.Errorf("%w: zero return variance", models.ErrDegenerateInput)
	}

	clustering := VolatilityClustering(s.Returns)
	alpha, beta := GARCHMoments(s.Returns)
	persistence := alpha + beta
	vov := VolOfVol(s.Returns)
	params := map[string]models.ParamValue{
		"clustering":  models.Num(clustering),
		"alpha":       models.Num(alpha),
		"beta":        models.Num(beta),
		"persistence": models.Num(persistence),
		"volOfVol":    models.Num(vov),
	}
	desc := fmt.Sprintf("GARCH persistence %.3f (alpha %.3f, beta %.3f), squared-return ACF %.3f", persistence, alpha, beta, clustering)
	return newSignal(d.Type(), d.Name(), desc, persistence, clustering, vov/sd, params, at), nil
}

var _ domsvc.PatternDetector = (*VolatilityDetector)(nil)
