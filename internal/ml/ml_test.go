package ml

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/forest-guardian/fmc-pipeline/internal/cache"
	"github.com/forest-guardian/fmc-pipeline/internal/raster"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

// recordingPredictor returns a constant label and keeps what it was given.
type recordingPredictor struct {
	label    float64
	features int
	seen     *mat.Dense
	labels   int
}

func (p *recordingPredictor) Predict(_ context.Context, features *mat.Dense) ([]float64, error) {
	p.seen = mat.DenseCopyOf(features)
	rows, _ := features.Dims()
	if p.labels > 0 {
		rows = p.labels
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = p.label
	}
	return out, nil
}

func (p *recordingPredictor) NumFeatures() int { return p.features }

func featureRaster(t *testing.T) *raster.Raster {
	t.Helper()
	g := raster.Grid{Width: 2, Height: 2, CRS: "EPSG:3577", GeoTransform: [6]float64{10, 20, 0, 50, 0, -20}}
	r := raster.New(g)
	require.NoError(t, r.AddBand("a", []float64{1, math.Inf(1), 3, 4}))
	require.NoError(t, r.AddBand("b", []float64{math.Inf(-1), 6, math.NaN(), 8}))
	return r
}

func TestFlattenReplacesNonFinite(t *testing.T) {
	m, err := Flatten(featureRaster(t), []string{"b", "a"})
	require.NoError(t, err)
	rows, cols := m.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []float64{NoData, 1}, m.RawRowView(0))
	assert.Equal(t, []float64{6, NoData}, m.RawRowView(1))
	assert.Equal(t, []float64{NoData, 3}, m.RawRowView(2))
	assert.Equal(t, []float64{8, 4}, m.RawRowView(3))
}

func TestClassifyNeverPassesInfinity(t *testing.T) {
	p := &recordingPredictor{label: 5}
	features := featureRaster(t)

	out, err := Classify(context.Background(), p, features, []string{"a", "b"})
	require.NoError(t, err)

	rows, cols := p.seen.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := p.seen.At(r, c)
			assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "row %d col %d is %v", r, c, v)
		}
	}

	assert.True(t, out.Grid.Equal(features.Grid))
	assert.Equal(t, []string{OutputBand}, out.Bands())
	labels, _ := out.Band(OutputBand)
	assert.Equal(t, []float64{5, 5, 5, 5}, labels)
}

func TestClassifyShapeErrors(t *testing.T) {
	features := featureRaster(t)
	var shapeErr *ClassificationError

	_, err := Classify(context.Background(), &recordingPredictor{features: 12}, features, []string{"a", "b"})
	assert.True(t, errors.As(err, &shapeErr))

	_, err = Classify(context.Background(), &recordingPredictor{labels: 3}, features, []string{"a", "b"})
	assert.True(t, errors.As(err, &shapeErr))

	_, err = Classify(context.Background(), &recordingPredictor{}, features, []string{"a", "missing"})
	assert.True(t, errors.As(err, &shapeErr))
}

// stumpModel splits on feature 1 at 0.5: below goes to class 10, above to class 20.
const stumpModel = `{
  "kind": "classifier",
  "features": ["x", "y"],
  "classes": [10, 20],
  "trees": [
    {"children_left": [1, -1, -1], "children_right": [2, -1, -1], "feature": [1, -2, -2],
     "threshold": [0.5, -2, -2], "value": [[5, 5], [4, 0], [0, 3]]},
    {"children_left": [-1], "children_right": [-1], "feature": [-2],
     "threshold": [-2], "value": [[1, 3]]}
  ]
}`

func TestForestPredict(t *testing.T) {
	f, err := ParseForest([]byte(stumpModel))
	require.NoError(t, err)
	assert.Equal(t, 2, f.NumFeatures())

	// Row 0: tree one votes class 10 fully, tree two 0.25/0.75, so class 10 wins.
	// Row 1: both trees favour class 20.
	labels, err := f.Predict(context.Background(), mat.NewDense(2, 2, []float64{0, 0.1, 0, 0.9}))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, labels)

	_, err = f.Predict(context.Background(), mat.NewDense(1, 3, []float64{0, 0, 0}))
	var shapeErr *ClassificationError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestForestRegressor(t *testing.T) {
	f, err := ParseForest([]byte(`{"kind":"regressor","n_features":1,"trees":[
		{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[-2],"value":[[80]]},
		{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[-2],"value":[[120]]}]}`))
	require.NoError(t, err)
	labels, err := f.Predict(context.Background(), mat.NewDense(1, 1, []float64{3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, labels)
}

func TestParseForestRejectsBrokenTrees(t *testing.T) {
	bad := []string{
		`{"features":["x"],"classes":[1],"trees":[]}`,
		`{"classes":[1],"trees":[{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[0],"value":[[1]]}]}`,
		`{"features":["x"],"classes":[1,2],"trees":[{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[0],"value":[[1]]}]}`,
		`{"features":["x"],"classes":[1],"trees":[{"children_left":[5,-1],"children_right":[1,-1],"feature":[0,-2],"threshold":[0,0],"value":[[1],[1]]}]}`,
		`{"features":["x"],"classes":[1],"trees":[{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[3,-2,-2],"threshold":[0,0,0],"value":[[1],[1],[1]]}]}`,
		`{"kind":"svm","features":["x"],"classes":[1],"trees":[]}`,
	}
	for _, doc := range bad {
		_, err := ParseForest([]byte(doc))
		assert.Error(t, err, doc)
	}
}

type countingStore struct {
	storage.Store
	opens int
}

func (c *countingStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	c.opens++
	return c.Store.Open(ctx, uri)
}

func TestLoadCachesDownloadedModel(t *testing.T) {
	ctx := context.Background()
	modelPath := filepath.Join(t.TempDir(), "fmc.json")
	store := &countingStore{Store: storage.FileStore{}}
	require.NoError(t, store.Put(ctx, modelPath, strings.NewReader(stumpModel)))

	opts := LoadOptions{Store: store, Cache: cache.NewFileCache[Forest](t.TempDir(), 0)}
	first, err := Load(ctx, modelPath, opts)
	require.NoError(t, err)
	second, err := Load(ctx, modelPath, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, store.opens)
	assert.Equal(t, first.NumFeatures(), second.NumFeatures())
	assert.NoError(t, second.Close())
}

func TestLoadMissingModel(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "none.json"), LoadOptions{Store: storage.FileStore{}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
