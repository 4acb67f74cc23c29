//go:build property
// +build property

package scoring_test

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/finguard-labs/finguard/pkg/scoring"
)

// TestAnalyzeDeterminism verifies scoring is a pure function of its input.
func TestAnalyzeDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	engine := scoring.NewDefaultEngine()

	properties.Property("same input yields same verdict", prop.ForAll(
		func(content string) bool {
			a := engine.Analyze(content)
			b := engine.Analyze(content)
			if a.Score != b.Score || a.Recommendation != b.Recommendation {
				return false
			}
			if len(a.Indicators) != len(b.Indicators) {
				return false
			}
			for i := range a.Indicators {
				if a.Indicators[i] != b.Indicators[i] {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestAnalyzeScoreBounds verifies score and confidence stay within [0, 1]
// and confidence follows the score law.
func TestAnalyzeScoreBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	engine := scoring.NewDefaultEngine()

	properties.Property("score and confidence bounded, confidence law holds", prop.ForAll(
		func(content string) bool {
			res := engine.Analyze(content)
			if res.Score < 0 || res.Score > 1 {
				return false
			}
			if res.Confidence < 0 || res.Confidence > 1 {
				return false
			}
			want := math.Round(math.Min(res.Score*1.2, 1.0)*100) / 100
			return math.Abs(res.Confidence-want) < 0.011
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestAnalyzeMonotoneUnderKeywordAppend verifies that appending a high-risk
// keyword never lowers the score.
func TestAnalyzeMonotoneUnderKeywordAppend(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	engine := scoring.NewDefaultEngine()
	tables := scoring.DefaultTables()

	properties.Property("appending a high-risk keyword never lowers the score", prop.ForAll(
		func(content string, idx int) bool {
			kw := tables.HighRisk[idx%len(tables.HighRisk)]
			base := engine.Analyze(content)
			boosted := engine.Analyze(content + " " + kw)
			return boosted.Score >= base.Score
		},
		gen.AlphaString(),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}
