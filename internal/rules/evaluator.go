// Package rules implements the deterministic rule checks that complement the
// anomaly model.
package rules

import (
	"strconv"
	"strings"

	"github.com/fraudsight/fraudsight/internal/model"
)

// highRiskMinAmount is the minimum amount for the high-risk-category rule to
// fire, in the same currency-agnostic unit as the event amount.
const highRiskMinAmount = 1000

// Config controls the evaluator. Changes take effect on restart.
type Config struct {
	HighRiskCategories []string
	AmountHardMax      float64
	Enabled            bool
}

// Evaluator applies the rule checks in a fixed order so that reasons are
// reproducible. It is stateless and safe for concurrent use.
type Evaluator struct {
	highRisk map[string]struct{}
	hardMax  float64
	enabled  bool
}

// New builds an evaluator from cfg, normalizing the category set.
func New(cfg Config) *Evaluator {
	highRisk := make(map[string]struct{}, len(cfg.HighRiskCategories))
	for _, c := range cfg.HighRiskCategories {
		c = normalizeCategory(c)
		if c != "" {
			highRisk[c] = struct{}{}
		}
	}
	return &Evaluator{
		enabled:  cfg.Enabled,
		hardMax:  cfg.AmountHardMax,
		highRisk: highRisk,
	}
}

// Evaluate runs the rule checks against one event. It is a pure function:
// identical input always yields identical output, and it never fails. A
// malformed amount is treated as zero upstream of decoding.
//
// Rules, in order:
//  1. amount strictly above the hard maximum
//  2. normalized merchant category in the high-risk set with amount >= 1000
func (e *Evaluator) Evaluate(event model.InboundEvent) (bool, []string) {
	if !e.enabled {
		return false, nil
	}

	var reasons []string

	if event.Amount > e.hardMax {
		reasons = append(reasons, "amount>"+formatAmount(e.hardMax))
	}

	category := normalizeCategory(event.MerchantCategory)
	if category != "" {
		if _, ok := e.highRisk[category]; ok && event.Amount >= highRiskMinAmount {
			reasons = append(reasons, "high_risk_category:"+category)
		}
	}

	return len(reasons) > 0, reasons
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// formatAmount renders the threshold the way it appears in alerts, always
// keeping at least one decimal place ("1000000.0", not "1e+06").
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
