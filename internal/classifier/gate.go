package classifier

import (
	"NetSentinel/internal/model"
	"context"
	"fmt"
	"log"
	"math"
)

// DefaultThreshold is the probability above which a flow is flagged.
const DefaultThreshold = 0.5

// Mode identifies how a scoring capability reports its verdict.
type Mode int

const (
	ModeProbability Mode = iota
	ModeDiscrete
)

func (m Mode) String() string {
	if m == ModeDiscrete {
		return "discrete"
	}
	return "probability"
}

// strategy turns a feature vector into a score and a class.
type strategy interface {
	assess(ctx context.Context, v model.FeatureVector) (float64, model.PredictedClass, error)
}

type probabilityStrategy struct {
	scorer    model.ProbabilityScorer
	threshold float64
}

func (s probabilityStrategy) assess(ctx context.Context, v model.FeatureVector) (float64, model.PredictedClass, error) {
	p, err := s.scorer.Score(ctx, v)
	if err != nil {
		return 0, model.Normal, err
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, model.Normal, fmt.Errorf("probability %v outside [0,1]", p)
	}
	if p > s.threshold {
		return p, model.Suspicious, nil
	}
	return p, model.Normal, nil
}

type discreteStrategy struct {
	predictor model.Predictor
}

func (s discreteStrategy) assess(ctx context.Context, v model.FeatureVector) (float64, model.PredictedClass, error) {
	label, err := s.predictor.Predict(ctx, v)
	if err != nil {
		return 0, model.Normal, err
	}
	switch label {
	case 0:
		return 0, model.Normal, nil
	case 1:
		return 1, model.Suspicious, nil
	default:
		return 0, model.Normal, fmt.Errorf("unexpected class label %d", label)
	}
}

// RoundStats summarizes the attack scores of one round. It is diagnostic only.
type RoundStats struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
}

func (s RoundStats) String() string {
	return fmt.Sprintf("min=%.3f, max=%.3f, mean=%.3f", s.Min, s.Max, s.Mean)
}

// Gate applies the scoring capability and the threshold policy to flows.
type Gate struct {
	strategy strategy
	schema   []string
	mode     Mode
}

// NewGate inspects the capability once and selects the matching strategy.
// Capabilities that expose probabilities take precedence over discrete ones;
// the threshold is only used in probability mode.
func NewGate(capability model.FeatureSchema, threshold float64) (*Gate, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0,1]", threshold)
	}
	g := &Gate{schema: capability.FeatureNames()}
	switch c := capability.(type) {
	case model.ProbabilityScorer:
		g.strategy = probabilityStrategy{scorer: c, threshold: threshold}
		g.mode = ModeProbability
	case model.Predictor:
		g.strategy = discreteStrategy{predictor: c}
		g.mode = ModeDiscrete
	default:
		return nil, fmt.Errorf("capability %T exposes neither Score nor Predict", capability)
	}
	log.Printf("Classification gate using %s mode over %d features", g.mode, len(g.schema))
	return g, nil
}

// Mode returns the strategy selected at construction.
func (g *Gate) Mode() Mode {
	return g.mode
}

// FeatureNames returns the feature order the underlying capability expects.
func (g *Gate) FeatureNames() []string {
	return append([]string(nil), g.schema...)
}

// Classify scores one flow. A vector whose feature order differs from the
// capability's schema yields a *model.FeatureMismatchError; a rejected input
// yields a *model.ScoringError.
func (g *Gate) Classify(ctx context.Context, record *model.FlowRecord, v model.FeatureVector) (model.ScoredFlow, error) {
	if err := g.checkVector(v); err != nil {
		return model.ScoredFlow{}, err
	}
	score, class, err := g.strategy.assess(ctx, v)
	if err != nil {
		return model.ScoredFlow{}, &model.ScoringError{Flow: record.Key, Err: err}
	}
	return model.ScoredFlow{Record: record, AttackScore: score, Class: class}, nil
}

// ClassifyRound scores every vector of a round. The first error aborts the round.
func (g *Gate) ClassifyRound(ctx context.Context, records []*model.FlowRecord, vectors []model.FeatureVector) ([]model.ScoredFlow, RoundStats, error) {
	if len(records) != len(vectors) {
		return nil, RoundStats{}, fmt.Errorf("got %d records but %d vectors", len(records), len(vectors))
	}

	scored := make([]model.ScoredFlow, 0, len(records))
	for i, record := range records {
		sf, err := g.Classify(ctx, record, vectors[i])
		if err != nil {
			return nil, RoundStats{}, err
		}
		scored = append(scored, sf)
	}

	stats := Summarize(scored)
	if stats.Count > 0 {
		log.Printf("attack_score stats: %s", stats)
	}
	return scored, stats, nil
}

// Summarize computes min/max/mean over the attack scores.
func Summarize(scored []model.ScoredFlow) RoundStats {
	if len(scored) == 0 {
		return RoundStats{}
	}
	stats := RoundStats{Count: len(scored), Min: math.Inf(1), Max: math.Inf(-1)}
	sum := 0.0
	for _, sf := range scored {
		stats.Min = math.Min(stats.Min, sf.AttackScore)
		stats.Max = math.Max(stats.Max, sf.AttackScore)
		sum += sf.AttackScore
	}
	stats.Mean = sum / float64(len(scored))
	return stats
}

// Suspicious returns the flagged subset of scored flows.
func Suspicious(scored []model.ScoredFlow) []model.ScoredFlow {
	var out []model.ScoredFlow
	for _, sf := range scored {
		if sf.Class == model.Suspicious {
			out = append(out, sf)
		}
	}
	return out
}

func (g *Gate) checkVector(v model.FeatureVector) error {
	if len(v.Names) != len(v.Values) {
		return &model.FeatureMismatchError{Reason: "vector names and values differ in length"}
	}
	if len(v.Names) != len(g.schema) {
		return &model.FeatureMismatchError{
			Reason: fmt.Sprintf("classifier expects %d features, got %d", len(g.schema), len(v.Names)),
		}
	}
	for i, name := range v.Names {
		if name != g.schema[i] {
			return &model.FeatureMismatchError{
				Feature: name,
				Reason:  fmt.Sprintf("position %d, classifier expects %q", i, g.schema[i]),
			}
		}
	}
	return nil
}
