// Package scoring implements the deterministic keyword-based fraud scoring
// engine used by the action gateway's fraud handlers. Scoring is a pure
// function of the input text and the configured keyword tables: no
// randomness, no clocks, no external calls.
package scoring

import (
	"math"
	"strings"
)

// Per-match weights and the combined crypto/transfer bonus.
const (
	highRiskWeight   = 0.3
	mediumRiskWeight = 0.2
	socialEngWeight  = 0.25
	comboBonus       = 0.4

	blockThreshold  = 0.7
	reviewThreshold = 0.4
)

// ComboIndicator is appended to the indicator list when crypto and transfer
// vocabulary co-occur in the same input.
const ComboIndicator = "crypto_transfer_combo"

// Recommendation values produced by the engine.
const (
	RecommendBlock  = "BLOCK"
	RecommendReview = "REVIEW"
	RecommendSafe   = "SAFE"
)

// Result is the engine's complete verdict for one input.
type Result struct {
	FraudDetected     bool     `json:"fraud_detected"`
	Score             float64  `json:"fraud_score"`
	Indicators        []string `json:"fraud_indicators"`
	HighRisk          []string `json:"high_risk_keywords"`
	MediumRisk        []string `json:"medium_risk_keywords"`
	SocialEngineering []string `json:"social_engineering_indicators"`
	CryptoPresent     bool     `json:"crypto_present"`
	TransferPresent   bool     `json:"transfer_present"`
	Recommendation    string   `json:"recommendation"`
	Confidence        float64  `json:"confidence"`
}

// Engine scores text against fixed keyword tables.
type Engine struct {
	tables Tables
}

// NewEngine builds an engine over the given tables.
func NewEngine(tables Tables) *Engine {
	return &Engine{tables: tables}
}

// NewDefaultEngine builds an engine over the built-in tables.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultTables())
}

// Analyze scores content. Matching is case-insensitive substring containment;
// each matched keyword contributes its category weight, and the score is
// capped at 1.0. Indicators list every matched keyword in table order, high
// risk first, then medium, then social engineering, then the combo marker.
func (e *Engine) Analyze(content string) Result {
	lower := strings.ToLower(content)

	highRisk := matchAll(lower, e.tables.HighRisk)
	mediumRisk := matchAll(lower, e.tables.MediumRisk)
	socialEng := matchAll(lower, e.tables.SocialEngineering)
	cryptoPresent := matchAny(lower, e.tables.Crypto)
	transferPresent := matchAny(lower, e.tables.Transfer)

	score := float64(len(highRisk))*highRiskWeight +
		float64(len(mediumRisk))*mediumRiskWeight +
		float64(len(socialEng))*socialEngWeight

	indicators := make([]string, 0, len(highRisk)+len(mediumRisk)+len(socialEng)+1)
	indicators = append(indicators, highRisk...)
	indicators = append(indicators, mediumRisk...)
	indicators = append(indicators, socialEng...)

	if cryptoPresent && transferPresent {
		score += comboBonus
		indicators = append(indicators, ComboIndicator)
	}

	score = math.Min(score, 1.0)

	var recommendation string
	var detected bool
	switch {
	case score >= blockThreshold:
		recommendation = RecommendBlock
		detected = true
	case score >= reviewThreshold:
		recommendation = RecommendReview
		detected = true
	default:
		recommendation = RecommendSafe
	}

	return Result{
		FraudDetected:     detected,
		Score:             round2(score),
		Indicators:        indicators,
		HighRisk:          highRisk,
		MediumRisk:        mediumRisk,
		SocialEngineering: socialEng,
		CryptoPresent:     cryptoPresent,
		TransferPresent:   transferPresent,
		Recommendation:    recommendation,
		Confidence:        round2(math.Min(score*1.2, 1.0)),
	}
}

func matchAll(lower string, keywords []string) []string {
	found := make([]string, 0)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func matchAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
