package pipeline

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/forest"
	"github.com/manohar-125/ThalAI-App/internal/model"
)

func testSchema() model.FeatureSchema {
	return model.FeatureSchema{
		Numeric:     []string{"frequency_in_days", "donated_earlier"},
		Categorical: []string{"blood_group"},
	}
}

// donorRows: active donors give often and are O+, inactive rarely and are B+.
func donorRows(n int) ([]model.FeatureRow, []int) {
	rows := make([]model.FeatureRow, n)
	y := make([]int, n)
	for i := range rows {
		active := i%2 == 0
		row := model.FeatureRow{
			"frequency_in_days": model.Number(float64(30 + i%5)),
			"donated_earlier":   model.Number(1),
			"blood_group":       model.Category("O+"),
		}
		if !active {
			row["frequency_in_days"] = model.Number(float64(300 + i%7))
			row["donated_earlier"] = model.Number(0)
			row["blood_group"] = model.Category("B+")
		}
		if i%9 == 0 {
			row["donated_earlier"] = model.Missing()
		}
		rows[i] = row
		if active {
			y[i] = 1
		}
	}
	return rows, y
}

func TestImputers(t *testing.T) {
	rows := []model.FeatureRow{
		{"a": model.Number(1), "c": model.Category("x")},
		{"a": model.Number(5), "c": model.Category("y")},
		{"a": model.Missing(), "c": model.Category("y")},
		{"a": model.Number(3), "c": model.Missing()},
		{"a": model.Number(10), "c": model.Category("x")},
	}

	med := FitMedianImputer(rows, []string{"a", "empty"})
	assert.Equal(t, []float64{4, 0}, med.Medians)

	modes := FitModeImputer(rows, []string{"c", "empty"})
	assert.Equal(t, []string{"x", fallbackCategory}, modes.Modes, "tie between x and y resolves to x")
}

func TestOneHotEncoder_UnknownCategory(t *testing.T) {
	enc := FitOneHotEncoder([][]string{{"O+", "F"}, {"A-", "M"}, {"O+", "M"}})
	assert.Equal(t, [][]string{{"A-", "O+"}, {"F", "M"}}, enc.Categories)
	assert.Equal(t, 4, enc.Width())

	assert.Equal(t, []float64{0, 1, 1, 0}, enc.Encode(nil, []string{"O+", "F"}))
	assert.Equal(t, []float64{0, 0, 0, 1}, enc.Encode(nil, []string{"AB+", "M"}))
	assert.Equal(t, []float64{0, 0, 0, 1}, enc.Encode(nil, []string{"o+", "M"}), "categories are case sensitive")
}

func TestFit_AndPredict(t *testing.T) {
	rows, y := donorRows(40)
	clf := forest.New(forest.WithNEstimators(15), forest.WithSeed(3))

	p, err := Fit(context.Background(), testSchema(), rows, y, clf, nil)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, []string{"frequency_in_days", "donated_earlier", "blood_group=B+", "blood_group=O+"}, p.ColumnNames())

	res, err := p.Predict(model.FeatureRow{
		"frequency_in_days": model.Number(31),
		"donated_earlier":   model.Number(1),
		"blood_group":       model.Category("O+"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Label)
	require.NotNil(t, res.Score)
	assert.GreaterOrEqual(t, *res.Score, 0.0)
	assert.LessOrEqual(t, *res.Score, 1.0)

	all := model.FeatureRow{
		"frequency_in_days": model.Missing(),
		"donated_earlier":   model.Missing(),
		"blood_group":       model.Missing(),
	}
	_, err = p.Predict(all)
	assert.NoError(t, err, "all-missing rows are imputed")

	labels, err := p.PredictLabels(rows)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, Evaluate(y, labels).Accuracy, 0.9)
}

func TestPredict_StructuralFailures(t *testing.T) {
	rows, y := donorRows(20)
	p, err := Fit(context.Background(), testSchema(), rows, y, forest.New(forest.WithNEstimators(5)), nil)
	require.NoError(t, err)

	_, err = p.Predict(model.FeatureRow{
		"frequency_in_days": model.Number(math.Inf(1)),
		"donated_earlier":   model.Number(1),
		"blood_group":       model.Category("O+"),
	})
	assert.ErrorIs(t, err, forest.ErrNonFinite)

	_, err = p.Predict(model.FeatureRow{"frequency_in_days": model.Number(1)})
	assert.Error(t, err)

	broken := *p
	broken.Numeric = MedianImputer{}
	_, err = broken.Predict(rows[0])
	assert.Error(t, err)
}

func TestFit_Errors(t *testing.T) {
	_, err := Fit(context.Background(), model.FeatureSchema{}, nil, nil, forest.New(), nil)
	assert.ErrorIs(t, err, common.ErrEmptySchema)

	_, err = Fit(context.Background(), testSchema(), nil, nil, forest.New(), nil)
	assert.ErrorIs(t, err, common.ErrNoTrainingData)
}

func TestStratifiedSplit(t *testing.T) {
	y := make([]int, 100)
	for i := 50; i < 100; i++ {
		y[i] = 1
	}

	train, test, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	ones := 0
	for _, i := range test {
		ones += y[i]
	}
	assert.Equal(t, 10, ones)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d used twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 100)

	train2, test2, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestStratifiedSplit_Errors(t *testing.T) {
	_, _, err := StratifiedSplit([]int{1, 1, 1}, 0.2, 1)
	assert.ErrorIs(t, err, common.ErrSingleClass)

	_, _, err = StratifiedSplit([]int{1, 1, 1, 0}, 0.2, 1)
	assert.ErrorIs(t, err, ErrTooFewPerClass)

	_, _, err = StratifiedSplit([]int{1, 0}, 1.5, 1)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestEvaluate(t *testing.T) {
	r := Evaluate([]int{1, 1, 0, 0}, []int{1, 0, 0, 0})
	assert.InDelta(t, 0.75, r.Accuracy, 1e-9)
	require.Len(t, r.Classes, 2)

	zero, one := r.Classes[0], r.Classes[1]
	assert.InDelta(t, 2.0/3.0, zero.Precision, 1e-9)
	assert.InDelta(t, 1.0, zero.Recall, 1e-9)
	assert.Equal(t, 2, zero.Support)
	assert.InDelta(t, 1.0, one.Precision, 1e-9)
	assert.InDelta(t, 0.5, one.Recall, 1e-9)
}
