package classifier

import (
	"NetSentinel/internal/model"
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Artifact is the on-disk description of a pretrained classifier.
type Artifact struct {
	Kind     string   `yaml:"kind"` // "logistic", "forest" or "tree"
	Name     string   `yaml:"name"`
	Features []string `yaml:"features"`

	// logistic
	Weights []float64 `yaml:"weights"`
	Bias    float64   `yaml:"bias"`
	Log1p   bool      `yaml:"log1p"`
	Mean    []float64 `yaml:"mean"`
	Scale   []float64 `yaml:"scale"`

	// forest and tree
	Trees []TreeDef `yaml:"trees"`
}

// TreeDef is a decision tree stored as a flat node list rooted at index 0.
type TreeDef struct {
	Nodes []NodeDef `yaml:"nodes"`
}

// NodeDef is either a split (feature <= threshold goes left) or a leaf.
type NodeDef struct {
	Leaf      bool     `yaml:"leaf"`
	Feature   int      `yaml:"feature"`
	Threshold float64  `yaml:"threshold"`
	Left      int      `yaml:"left"`
	Right     int      `yaml:"right"`
	Class     int      `yaml:"class"`
	Proba     *float64 `yaml:"proba"`
}

// LoadArtifact reads and validates a classifier artifact. The returned value
// implements model.ProbabilityScorer or model.Predictor depending on its kind.
// Any failure here is a startup configuration problem.
func LoadArtifact(path string) (model.FeatureSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier artifact: %w", err)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal classifier artifact '%s': %w", path, err)
	}
	return a.Build()
}

// Build validates the artifact and returns the matching scoring capability.
func (a Artifact) Build() (model.FeatureSchema, error) {
	if len(a.Features) == 0 {
		return nil, fmt.Errorf("classifier artifact declares no features")
	}
	n := len(a.Features)

	switch a.Kind {
	case "logistic":
		if len(a.Weights) != n {
			return nil, fmt.Errorf("logistic artifact has %d weights for %d features", len(a.Weights), n)
		}
		if (a.Mean != nil && len(a.Mean) != n) || (a.Scale != nil && len(a.Scale) != n) {
			return nil, fmt.Errorf("logistic artifact standardization does not match %d features", n)
		}
		for i, s := range a.Scale {
			if s == 0 {
				return nil, fmt.Errorf("logistic artifact scale[%d] is zero", i)
			}
		}
		return &LogisticModel{a: a}, nil
	case "forest":
		if len(a.Trees) == 0 {
			return nil, fmt.Errorf("forest artifact has no trees")
		}
		for i, t := range a.Trees {
			if err := t.validate(n); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return &ForestModel{features: a.Features, trees: a.Trees}, nil
	case "tree":
		if len(a.Trees) != 1 {
			return nil, fmt.Errorf("tree artifact must have exactly one tree, got %d", len(a.Trees))
		}
		if err := a.Trees[0].validate(n); err != nil {
			return nil, err
		}
		return &TreeModel{features: a.Features, tree: a.Trees[0]}, nil
	default:
		return nil, fmt.Errorf("unknown classifier artifact kind: '%s'", a.Kind)
	}
}

func (t TreeDef) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, node := range t.Nodes {
		if node.Leaf {
			if node.Class != 0 && node.Class != 1 {
				return fmt.Errorf("leaf %d has class %d, want 0 or 1", i, node.Class)
			}
			if node.Proba != nil && (*node.Proba < 0 || *node.Proba > 1) {
				return fmt.Errorf("leaf %d has proba %v outside [0,1]", i, *node.Proba)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= numFeatures {
			return fmt.Errorf("node %d splits on unknown feature index %d", i, node.Feature)
		}
		// Children must come after their parent, which rules out cycles.
		if node.Left <= i || node.Right <= i || node.Left >= len(t.Nodes) || node.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, node.Left, node.Right)
		}
	}
	return nil
}

func (t TreeDef) leaf(x []float64) NodeDef {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Leaf {
			return node
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

func checkDims(features []string, v model.FeatureVector) error {
	if len(v.Values) != len(features) {
		return fmt.Errorf("expected %d features, got %d", len(features), len(v.Values))
	}
	for _, x := range v.Values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("non-finite feature value %v", x)
		}
	}
	return nil
}

// LogisticModel is a logistic regression over optionally log-scaled and
// standardized features.
type LogisticModel struct {
	a Artifact
}

func (m *LogisticModel) FeatureNames() []string { return append([]string(nil), m.a.Features...) }

// Score returns the sigmoid of the linear decision function.
func (m *LogisticModel) Score(_ context.Context, v model.FeatureVector) (float64, error) {
	if err := checkDims(m.a.Features, v); err != nil {
		return 0, err
	}
	z := m.a.Bias
	for i, x := range v.Values {
		if m.a.Log1p {
			x = math.Log1p(math.Max(x, 0))
		}
		if m.a.Mean != nil {
			x -= m.a.Mean[i]
		}
		if m.a.Scale != nil {
			x /= m.a.Scale[i]
		}
		z += m.a.Weights[i] * x
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// ForestModel averages the leaf probabilities of its trees.
type ForestModel struct {
	features []string
	trees    []TreeDef
}

func (m *ForestModel) FeatureNames() []string { return append([]string(nil), m.features...) }

// Score returns the mean attack probability across trees.
func (m *ForestModel) Score(_ context.Context, v model.FeatureVector) (float64, error) {
	if err := checkDims(m.features, v); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, t := range m.trees {
		leaf := t.leaf(v.Values)
		if leaf.Proba != nil {
			sum += *leaf.Proba
		} else {
			sum += float64(leaf.Class)
		}
	}
	return sum / float64(len(m.trees)), nil
}

// TreeModel is a single decision tree that only yields a class label.
type TreeModel struct {
	features []string
	tree     TreeDef
}

func (m *TreeModel) FeatureNames() []string { return append([]string(nil), m.features...) }

// Predict returns 1 for attack and 0 for benign traffic.
func (m *TreeModel) Predict(_ context.Context, v model.FeatureVector) (int, error) {
	if err := checkDims(m.features, v); err != nil {
		return 0, err
	}
	return m.tree.leaf(v.Values).Class, nil
}
