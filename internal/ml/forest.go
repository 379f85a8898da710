package ml

import (
	"context"
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	KindClassifier = "classifier"
	KindRegressor  = "regressor"
)

// Tree is one fitted decision tree in the flat array layout scikit-learn exports: node i
// is a leaf when ChildrenLeft[i] is -1, otherwise rows with
// x[Feature[i]] <= Threshold[i] go left.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a tree ensemble exported to JSON. Classifiers average the per-tree class
// distributions and return the class with the highest mean; regressors average the leaf
// values.
type Forest struct {
	Kind      string    `json:"kind"`
	Features  []string  `json:"features"`
	NFeatures int       `json:"n_features"`
	Classes   []float64 `json:"classes"`
	Trees     []Tree    `json:"trees"`
}

// ParseForest decodes and validates an exported model.
func ParseForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Forest) Validate() error {
	if f.Kind == "" {
		f.Kind = KindClassifier
	}
	if f.Kind != KindClassifier && f.Kind != KindRegressor {
		return fmt.Errorf("unknown model kind %q", f.Kind)
	}
	if f.NFeatures == 0 {
		f.NFeatures = len(f.Features)
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("model does not declare its features")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("model has no trees")
	}
	if f.Kind == KindClassifier && len(f.Classes) == 0 {
		return fmt.Errorf("classifier has no classes")
	}

	for t, tree := range f.Trees {
		n := len(tree.ChildrenLeft)
		if n == 0 || len(tree.ChildrenRight) != n || len(tree.Feature) != n || len(tree.Threshold) != n || len(tree.Value) != n {
			return fmt.Errorf("tree %d has inconsistent node arrays", t)
		}
		for i := 0; i < n; i++ {
			left, right := tree.ChildrenLeft[i], tree.ChildrenRight[i]
			if left == -1 {
				if f.Kind == KindClassifier && len(tree.Value[i]) != len(f.Classes) {
					return fmt.Errorf("tree %d leaf %d has %d class weights, want %d", t, i, len(tree.Value[i]), len(f.Classes))
				}
				if f.Kind == KindRegressor && len(tree.Value[i]) == 0 {
					return fmt.Errorf("tree %d leaf %d has no value", t, i)
				}
				continue
			}
			if left <= i || left >= n || right <= i || right >= n {
				return fmt.Errorf("tree %d node %d has children out of range", t, i)
			}
			if tree.Feature[i] < 0 || tree.Feature[i] >= f.NFeatures {
				return fmt.Errorf("tree %d node %d splits on feature %d of %d", t, i, tree.Feature[i], f.NFeatures)
			}
		}
	}
	return nil
}

func (f *Forest) NumFeatures() int {
	return f.NFeatures
}

func (f *Forest) Close() error { return nil }

func (t *Tree) leaf(row []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if row[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

func (f *Forest) Predict(ctx context.Context, features *mat.Dense) ([]float64, error) {
	rows, cols := features.Dims()
	if cols != f.NFeatures {
		return nil, shapeError("model expects %d features, got %d", f.NFeatures, cols)
	}

	labels := make([]float64, rows)
	votes := make([]float64, len(f.Classes))
	for r := 0; r < rows; r++ {
		if r%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := features.RawRowView(r)
		if f.Kind == KindRegressor {
			sum := 0.0
			for i := range f.Trees {
				sum += f.Trees[i].leaf(row)[0]
			}
			labels[r] = sum / float64(len(f.Trees))
			continue
		}

		for i := range votes {
			votes[i] = 0
		}
		for i := range f.Trees {
			weights := f.Trees[i].leaf(row)
			total := 0.0
			for _, w := range weights {
				total += w
			}
			if total == 0 {
				continue
			}
			for c, w := range weights {
				votes[c] += w / total
			}
		}
		best := 0
		for c := 1; c < len(votes); c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		labels[r] = f.Classes[best]
	}
	return labels, nil
}
