// Package scoring wraps the pre-trained unsupervised outlier-detection model.
// The model is an isolation forest over a single feature (the transaction
// amount), persisted as a JSON artifact by the offline trainer and loaded
// once per process.
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fraudsight/fraudsight/internal/common"
)

const eulerGamma = 0.5772156649015329

// treeNode is one node of an isolation tree. Leaf nodes have Left == -1.
type treeNode struct {
	Split float64 `json:"split"`
	Left  int32   `json:"left"`
	Right int32   `json:"right"`
	Size  int32   `json:"size"`
}

type isolationTree struct {
	Nodes []treeNode `json:"nodes"`
}

// pathLength walks the tree for x and returns the isolation depth, adjusted
// by the expected subtree depth at the terminating leaf.
func (t *isolationTree) pathLength(x float64) float64 {
	depth := 0.0
	i := int32(0)
	for {
		node := t.Nodes[i]
		if node.Left < 0 {
			return depth + avgPathLength(int(node.Size))
		}
		if x < node.Split {
			i = node.Left
		} else {
			i = node.Right
		}
		depth++
	}
}

// Forest is the serialized model artifact.
type Forest struct {
	TrainedAt  time.Time       `json:"trained_at"`
	Trees      []isolationTree `json:"trees"`
	SampleSize int             `json:"sample_size"`
}

// Decision returns the decision-function value for an amount: 0.5 minus the
// anomaly score s(x) = 2^(-E[h(x)]/c(n)). Values lie in (-0.5, 0.5]; lower
// means more anomalous.
func (f *Forest) Decision(amount float64) float64 {
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].pathLength(amount)
	}
	mean := sum / float64(len(f.Trees))
	anomaly := math.Exp2(-mean / avgPathLength(f.SampleSize))
	return 0.5 - anomaly
}

// Save writes the artifact to path.
func (f *Forest) Save(path string) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	return nil
}

// LoadForest reads and validates a model artifact.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact %s: %w", path, err)
	}

	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrModelCorrupted, err)
	}
	if len(f.Trees) == 0 || f.SampleSize < 2 {
		return nil, fmt.Errorf("%w: empty forest", common.ErrModelCorrupted)
	}
	for i := range f.Trees {
		if len(f.Trees[i].Nodes) == 0 {
			return nil, fmt.Errorf("%w: tree %d has no nodes", common.ErrModelCorrupted, i)
		}
	}

	return &f, nil
}

// avgPathLength is the expected path length of an unsuccessful BST search in
// a tree built over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}
