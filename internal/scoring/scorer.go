package scoring

import (
	"github.com/fraudsight/fraudsight/internal/model"
)

// Scorer holds the loaded model and the anomaly threshold. It is immutable
// after construction and safe for concurrent use; the process must not accept
// traffic without one (model load failure is fatal at startup).
type Scorer struct {
	forest    *Forest
	threshold float64
}

// LoadScorer loads the model artifact from path. The returned Scorer keeps
// the model resident for the process lifetime.
func LoadScorer(path string, threshold float64) (*Scorer, error) {
	forest, err := LoadForest(path)
	if err != nil {
		return nil, err
	}
	return &Scorer{forest: forest, threshold: threshold}, nil
}

// NewScorer wraps an already-built forest; used by tests and the trainer.
func NewScorer(forest *Forest, threshold float64) *Scorer {
	return &Scorer{forest: forest, threshold: threshold}
}

// Score returns the model's decision-function output for an amount. Lower
// values indicate higher anomaly. It never fails for a well-formed amount;
// a missing amount decodes to 0 upstream and is scored as such.
func (s *Scorer) Score(amount float64) float64 {
	return s.forest.Decision(amount)
}

// Classify scores the event amount and applies the configured threshold.
func (s *Scorer) Classify(event model.InboundEvent) (float64, bool) {
	score := s.Score(event.Amount)
	return score, score < s.threshold
}

// Threshold returns the configured anomaly threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}
