package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

var (
	// ErrNotTrained is returned when predicting with an empty tree.
	ErrNotTrained = errors.New("model not trained")
	// ErrShapeMismatch is returned for a vector whose width differs from
	// the training width.
	ErrShapeMismatch = errors.New("feature vector shape mismatch")
)

const treeArtifactVersion = 1

// DecisionTree is a CART classifier using Gini impurity. Nodes are kept
// in a flat slice in pre-order; children are referenced by index.
type DecisionTree struct {
	// MaxDepth bounds the tree depth; zero or less means unbounded.
	MaxDepth int
	// MinSamplesSplit is the smallest node that may be split.
	MinSamplesSplit int
	// MinSamplesLeaf is the smallest number of samples a child may hold.
	MinSamplesLeaf int

	features []string
	classes  int
	nodes    []TreeNode
}

// TreeNode is one node of a trained tree. Counts holds the training
// samples per class that reached the node.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Counts     []int   `json:"counts"`
	IsLeaf     bool    `json:"is_leaf"`
}

type treeArtifact struct {
	Version         int        `json:"version"`
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	MinSamplesLeaf  int        `json:"min_samples_leaf"`
	Features        []string   `json:"features"`
	Classes         int        `json:"classes"`
	Nodes           []TreeNode `json:"nodes"`
}

// NewDecisionTree returns an untrained tree with the given depth limit.
func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

// SetFeatureNames names the columns the tree is trained on. When unset,
// Train names them f0, f1, ...
func (dt *DecisionTree) SetFeatureNames(names []string) {
	dt.features = append([]string(nil), names...)
}

// Features returns the training column names.
func (dt *DecisionTree) Features() []string {
	return append([]string(nil), dt.features...)
}

// Train fits the tree. Labels must be non-negative class indices.
func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}

	width := len(features[0])
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), width)
		}
	}
	if len(dt.features) == 0 {
		dt.features = make([]string, width)
		for i := range dt.features {
			dt.features[i] = fmt.Sprintf("f%d", i)
		}
	}
	if len(dt.features) != width {
		return fmt.Errorf("%w: %d feature names for %d features", ErrShapeMismatch, len(dt.features), width)
	}

	classes := 0
	for _, label := range labels {
		if label < 0 {
			return fmt.Errorf("negative label %d", label)
		}
		classes = max(classes, label+1)
	}
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = 2
	}
	if dt.MinSamplesLeaf < 1 {
		dt.MinSamplesLeaf = 1
	}

	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}

	b := &treeBuilder{tree: dt, x: features, y: labels, classes: classes}
	dt.classes = classes
	dt.nodes = b.build(idx, 0)
	return nil
}

// Predict returns the most probable class of the vector and its
// probability. Ties go to the lowest class label.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	node, err := dt.leaf(features)
	if err != nil {
		return 0, 0, err
	}
	label, prob := argmax(node.Counts)
	return label, prob, nil
}

// PredictProba returns the class distribution of the leaf the vector
// falls into.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	node, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	total := sum(node.Counts)
	proba := make([]float64, len(node.Counts))
	for i, c := range node.Counts {
		proba[i] = float64(c) / float64(total)
	}
	return proba, nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.nodes) == 0 {
		return TreeNode{}, ErrNotTrained
	}
	if len(features) != len(dt.features) {
		return TreeNode{}, fmt.Errorf("%w: got %d features, model expects %d", ErrShapeMismatch, len(features), len(dt.features))
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

// Leaves returns the number of leaf nodes.
func (dt *DecisionTree) Leaves() int {
	n := 0
	for _, node := range dt.nodes {
		if node.IsLeaf {
			n++
		}
	}
	return n
}

// Save writes the trained tree as JSON.
func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return ErrNotTrained
	}
	payload, err := json.Marshal(treeArtifact{
		Version:         treeArtifactVersion,
		MaxDepth:        dt.MaxDepth,
		MinSamplesSplit: dt.MinSamplesSplit,
		MinSamplesLeaf:  dt.MinSamplesLeaf,
		Features:        dt.features,
		Classes:         dt.classes,
		Nodes:           dt.nodes,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load replaces the tree with the one stored at path.
func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var artifact treeArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return fmt.Errorf("decode model %s: %w", path, err)
	}
	if artifact.Version != treeArtifactVersion {
		return fmt.Errorf("model %s: unsupported version %d", path, artifact.Version)
	}
	if len(artifact.Nodes) == 0 {
		return fmt.Errorf("model %s: %w", path, ErrNotTrained)
	}
	if len(artifact.Features) == 0 {
		return fmt.Errorf("model %s: no feature names", path)
	}
	if err := validateNodes(artifact); err != nil {
		return fmt.Errorf("model %s: %w", path, err)
	}

	dt.MaxDepth = artifact.MaxDepth
	dt.MinSamplesSplit = artifact.MinSamplesSplit
	dt.MinSamplesLeaf = artifact.MinSamplesLeaf
	dt.features = artifact.Features
	dt.classes = artifact.Classes
	dt.nodes = artifact.Nodes
	return nil
}

// validateNodes checks the pre-order layout Train produces: children of
// node i sit strictly after it, so every walk from the root terminates.
func validateNodes(artifact treeArtifact) error {
	if artifact.Classes <= 0 {
		return fmt.Errorf("invalid class count %d", artifact.Classes)
	}
	n := len(artifact.Nodes)
	for i, node := range artifact.Nodes {
		if len(node.Counts) != artifact.Classes {
			return fmt.Errorf("node %d has %d class counts, want %d", i, len(node.Counts), artifact.Classes)
		}
		if node.IsLeaf {
			if sum(node.Counts) == 0 {
				return fmt.Errorf("leaf %d has no samples", i)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(artifact.Features) {
			return fmt.Errorf("node %d splits on feature %d of %d", i, node.FeatureIdx, len(artifact.Features))
		}
		if !(i < node.LeftChild && node.LeftChild < node.RightChild && node.RightChild < n) {
			return fmt.Errorf("node %d has children %d and %d outside (%d, %d)", i, node.LeftChild, node.RightChild, i, n)
		}
	}
	return nil
}

type treeBuilder struct {
	tree    *DecisionTree
	x       [][]float64
	y       []int
	classes int
}

func (b *treeBuilder) build(idx []int, depth int) []TreeNode {
	counts := b.counts(idx)
	leaf := []TreeNode{{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Counts:     counts,
		IsLeaf:     true,
	}}

	if (b.tree.MaxDepth > 0 && depth >= b.tree.MaxDepth) || len(idx) < b.tree.MinSamplesSplit || gini(counts) == 0 {
		return leaf
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return leaf
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftNodes := b.build(left, depth+1)
	rightNodes := b.build(right, depth+1)

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, TreeNode{
		FeatureIdx: feature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Counts:     counts,
	})
	nodes = append(nodes, offset(leftNodes, 1)...)
	nodes = append(nodes, offset(rightNodes, 1+len(leftNodes))...)
	return nodes
}

// bestSplit scans every feature for the midpoint threshold with the
// lowest weighted Gini impurity. The first feature reaching the minimum
// wins, which keeps training deterministic.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	minLeaf := b.tree.MinSamplesLeaf
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := 0.0

	sorted := make([]int, len(idx))
	for feature := range b.tree.features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][feature] < b.x[sorted[j]][feature]
		})

		left := make([]int, b.classes)
		right := b.counts(sorted)
		for pos := 0; pos < len(sorted)-1; pos++ {
			label := b.y[sorted[pos]]
			left[label]++
			right[label]--

			nLeft := pos + 1
			nRight := len(sorted) - nLeft
			current := b.x[sorted[pos]][feature]
			next := b.x[sorted[pos+1]][feature]
			if current == next || nLeft < minLeaf || nRight < minLeaf {
				continue
			}

			impurity := weightedGini(left, right, nLeft, nRight)
			if bestFeature == -1 || impurity < bestImpurity {
				bestFeature = feature
				bestImpurity = impurity
				bestThreshold = current + (next-current)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature != -1
}

func (b *treeBuilder) counts(idx []int) []int {
	counts := make([]int, b.classes)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func offset(nodes []TreeNode, by int) []TreeNode {
	for i := range nodes {
		if !nodes[i].IsLeaf {
			nodes[i].LeftChild += by
			nodes[i].RightChild += by
		}
	}
	return nodes
}

func weightedGini(left, right []int, nLeft, nRight int) float64 {
	total := float64(nLeft + nRight)
	return (float64(nLeft)/total)*gini(left) + (float64(nRight)/total)*gini(right)
}

func gini(counts []int) float64 {
	n := sum(counts)
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

func argmax(counts []int) (int, float64) {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	total := sum(counts)
	if total == 0 {
		return best, 0
	}
	return best, float64(counts[best]) / float64(total)
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
