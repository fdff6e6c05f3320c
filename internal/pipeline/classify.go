package pipeline

import (
	"github.com/fraudsight/fraudsight/internal/model"
	"github.com/fraudsight/fraudsight/internal/rules"
	"github.com/fraudsight/fraudsight/internal/scoring"
)

// Classify runs the rule evaluator and the anomaly scorer against one event
// and combines them: a transaction is fraudulent when either flags it.
//
// The pipeline's call on consume is the authoritative evaluation; the HTTP
// layer reuses this for a redundant pre-annotation before publish, which is
// advisory only.
func Classify(evaluator *rules.Evaluator, scorer *scoring.Scorer, event model.InboundEvent) model.ScoringResult {
	ruleFlag, reasons := evaluator.Evaluate(event)
	score, modelFlag := scorer.Classify(event)

	return model.ScoringResult{
		Score:       score,
		RuleFlag:    ruleFlag,
		RuleReasons: reasons,
		ModelFlag:   modelFlag,
		IsFraud:     ruleFlag || modelFlag,
	}
}
