package quality

import (
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/outcomes"
)

// BandExpectation summarizes what selecting a band buys: the
// probability-weighted expected runs and outs across the band's outcomes,
// the mean normValue, and how much tabulated probability mass the band
// captures.
type BandExpectation struct {
	Band             Band    `json:"band"`
	OutcomeCount     int     `json:"outcomeCount"`
	TotalProbability float64 `json:"totalProbability"`
	ExpectedRuns     float64 `json:"expectedRuns"`
	ExpectedOuts     float64 `json:"expectedOuts"`
	MeanNormValue    float64 `json:"meanNormValue"`
}

// Expectation computes the band summary over the already-filtered outcome
// list. Weights are the empirical probabilities renormalized within the
// band; an empty band yields a zero summary.
func Expectation(b Band, banded []outcomes.PlayOutcome) BandExpectation {
	exp := BandExpectation{Band: b, OutcomeCount: len(banded)}
	if len(banded) == 0 {
		return exp
	}
	var mass, runs, outs, norm float64
	for _, o := range banded {
		mass += o.Probability
		runs += o.Probability * float64(o.RunsScored)
		outs += o.Probability * float64(o.OutsGained)
		norm += o.NormValue
	}
	exp.TotalProbability = mass
	exp.MeanNormValue = norm / float64(len(banded))
	if mass > 0 {
		exp.ExpectedRuns = runs / mass
		exp.ExpectedOuts = outs / mass
	}
	return exp
}
