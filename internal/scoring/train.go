package scoring

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// TrainConfig controls the offline fitting procedure.
type TrainConfig struct {
	Trees      int
	SampleSize int
	Seed       int64
}

// DefaultTrainConfig mirrors the production training setup.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Trees:      100,
		SampleSize: 256,
		Seed:       42,
	}
}

// SyntheticAmounts generates the offline training set: 1000 normal amounts
// around 50 and 50 outliers around 200.
func SyntheticAmounts(seed int64) []float64 {
	src := xrand.NewSource(uint64(seed))
	normal := distuv.Normal{Mu: 50, Sigma: 10, Src: src}
	outlier := distuv.Normal{Mu: 200, Sigma: 50, Src: src}

	amounts := make([]float64, 0, 1050)
	for i := 0; i < 1000; i++ {
		amounts = append(amounts, normal.Rand())
	}
	for i := 0; i < 50; i++ {
		amounts = append(amounts, outlier.Rand())
	}
	return amounts
}

// Train fits an isolation forest on the given amounts.
func Train(amounts []float64, cfg TrainConfig) (*Forest, error) {
	if len(amounts) < 2 {
		return nil, fmt.Errorf("need at least 2 training amounts, got %d", len(amounts))
	}
	if cfg.Trees <= 0 {
		cfg.Trees = DefaultTrainConfig().Trees
	}
	if cfg.SampleSize <= 1 {
		cfg.SampleSize = DefaultTrainConfig().SampleSize
	}
	if cfg.SampleSize > len(amounts) {
		cfg.SampleSize = len(amounts)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	maxDepth := int(math.Ceil(math.Log2(float64(cfg.SampleSize))))

	forest := &Forest{
		Trees:      make([]isolationTree, 0, cfg.Trees),
		SampleSize: cfg.SampleSize,
		TrainedAt:  time.Now().UTC(),
	}

	sample := make([]float64, cfg.SampleSize)
	for i := 0; i < cfg.Trees; i++ {
		// Subsample without replacement via a partial Fisher-Yates pass.
		perm := rng.Perm(len(amounts))
		for j := 0; j < cfg.SampleSize; j++ {
			sample[j] = amounts[perm[j]]
		}

		tree := isolationTree{}
		buildNode(&tree, sample, 0, maxDepth, rng)
		forest.Trees = append(forest.Trees, tree)
	}

	return forest, nil
}

// buildNode appends the subtree isolating the given points and returns its
// node index.
func buildNode(t *isolationTree, points []float64, depth, maxDepth int, rng *rand.Rand) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, treeNode{Left: -1, Right: -1, Size: int32(len(points))})

	lo, hi := minMax(points)
	if len(points) <= 1 || depth >= maxDepth || lo == hi {
		return idx
	}

	split := lo + rng.Float64()*(hi-lo)

	var left, right []float64
	for _, p := range points {
		if p < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	// A degenerate split isolates nothing; terminate as a leaf.
	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	leftIdx := buildNode(t, left, depth+1, maxDepth, rng)
	rightIdx := buildNode(t, right, depth+1, maxDepth, rng)

	t.Nodes[idx].Split = split
	t.Nodes[idx].Left = leftIdx
	t.Nodes[idx].Right = rightIdx
	return idx
}

func minMax(points []float64) (float64, float64) {
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi
}
