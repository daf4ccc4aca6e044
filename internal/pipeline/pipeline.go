package pipeline

import (
	"context"
	"fmt"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/forest"
	"github.com/manohar-125/ThalAI-App/internal/model"
)

// PositiveLabel is the label whose probability is reported as the score.
const PositiveLabel = 1

// Pipeline is the fitted transform chain plus classifier. All fields are
// exported so the whole value can be persisted; treat it as read-only once
// fitted.
type Pipeline struct {
	Forest      *forest.Forest
	Schema      model.FeatureSchema
	Numeric     MedianImputer
	Categorical ModeImputer
	Encoder     OneHotEncoder
}

// Fit learns imputation statistics and encoder vocabulary from rows, then
// trains the classifier. rows and y must be the training partition only.
func Fit(ctx context.Context, schema model.FeatureSchema, rows []model.FeatureRow, y []int, clf *forest.Forest, onTree func()) (*Pipeline, error) {
	if schema.IsEmpty() {
		return nil, common.ErrEmptySchema
	}
	if len(rows) == 0 {
		return nil, common.ErrNoTrainingData
	}
	if len(rows) != len(y) {
		return nil, fmt.Errorf("pipeline: %d rows but %d targets", len(rows), len(y))
	}

	p := &Pipeline{
		Schema:      schema.Clone(),
		Numeric:     FitMedianImputer(rows, schema.Numeric),
		Categorical: FitModeImputer(rows, schema.Categorical),
	}

	cats := make([][]string, len(rows))
	for i, r := range rows {
		c, err := p.imputeCategorical(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		cats[i] = c
	}
	p.Encoder = FitOneHotEncoder(cats)

	x, err := p.Transform(rows)
	if err != nil {
		return nil, err
	}
	if err := clf.Fit(ctx, x, y, onTree); err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}
	p.Forest = clf
	return p, nil
}

// Width is the number of columns the classifier sees.
func (p *Pipeline) Width() int {
	return len(p.Schema.Numeric) + p.Encoder.Width()
}

// ColumnNames lists the encoded columns in classifier order.
func (p *Pipeline) ColumnNames() []string {
	names := append([]string(nil), p.Schema.Numeric...)
	for j, feat := range p.Schema.Categorical {
		if j >= len(p.Encoder.Categories) {
			break
		}
		for _, c := range p.Encoder.Categories[j] {
			names = append(names, feat+"="+c)
		}
	}
	return names
}

// Validate checks that the fitted parts agree with the schema.
func (p *Pipeline) Validate() error {
	if p.Forest == nil {
		return fmt.Errorf("pipeline: classifier not fitted")
	}
	if len(p.Numeric.Medians) != len(p.Schema.Numeric) {
		return fmt.Errorf("pipeline: %d numeric medians for %d numeric features", len(p.Numeric.Medians), len(p.Schema.Numeric))
	}
	if len(p.Categorical.Modes) != len(p.Schema.Categorical) {
		return fmt.Errorf("pipeline: %d categorical modes for %d categorical features", len(p.Categorical.Modes), len(p.Schema.Categorical))
	}
	if len(p.Encoder.Categories) != len(p.Schema.Categorical) {
		return fmt.Errorf("pipeline: encoder covers %d of %d categorical features", len(p.Encoder.Categories), len(p.Schema.Categorical))
	}
	if p.Forest.NFeatures != p.Width() {
		return fmt.Errorf("pipeline: classifier expects %d columns, transforms produce %d", p.Forest.NFeatures, p.Width())
	}
	if p.Forest.ClassIndex(PositiveLabel) < 0 {
		return fmt.Errorf("pipeline: classifier has no class %d", PositiveLabel)
	}
	return nil
}

func (p *Pipeline) imputeCategorical(r model.FeatureRow) ([]string, error) {
	out := make([]string, len(p.Schema.Categorical))
	for j, name := range p.Schema.Categorical {
		v, ok := r[name]
		if !ok {
			return nil, fmt.Errorf("feature %q absent from row", name)
		}
		switch v.Kind {
		case model.KindMissing:
			out[j] = p.Categorical.Modes[j]
		case model.KindCategory:
			out[j] = v.Str
		default:
			return nil, fmt.Errorf("feature %q: expected category, got %s", name, v)
		}
	}
	return out, nil
}

// Transform turns feature rows into the dense matrix the classifier reads:
// imputed numeric columns followed by one-hot categorical columns.
func (p *Pipeline) Transform(rows []model.FeatureRow) ([][]float64, error) {
	x := make([][]float64, len(rows))
	for i, r := range rows {
		vec := make([]float64, 0, p.Width())
		for j, name := range p.Schema.Numeric {
			v, ok := r[name]
			if !ok {
				return nil, fmt.Errorf("row %d: feature %q absent from row", i, name)
			}
			switch v.Kind {
			case model.KindMissing:
				vec = append(vec, p.Numeric.Medians[j])
			case model.KindNumber:
				vec = append(vec, v.Num)
			default:
				return nil, fmt.Errorf("row %d: feature %q: expected number, got %q", i, name, v.Str)
			}
		}
		cats, err := p.imputeCategorical(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		x[i] = p.Encoder.Encode(vec, cats)
	}
	return x, nil
}

// PredictLabels returns one label per row.
func (p *Pipeline) PredictLabels(rows []model.FeatureRow) ([]int, error) {
	x, err := p.Transform(rows)
	if err != nil {
		return nil, err
	}
	return p.Forest.Predict(x)
}

// Predict scores a single row. Score is the probability of PositiveLabel.
func (p *Pipeline) Predict(row model.FeatureRow) (model.PredictionResult, error) {
	if err := p.Validate(); err != nil {
		return model.PredictionResult{}, err
	}
	x, err := p.Transform([]model.FeatureRow{row})
	if err != nil {
		return model.PredictionResult{}, err
	}
	proba, err := p.Forest.PredictProba(x)
	if err != nil {
		return model.PredictionResult{}, err
	}

	probs := proba[0]
	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	score := probs[p.Forest.ClassIndex(PositiveLabel)]
	return model.PredictionResult{Label: p.Forest.Classes[best], Score: &score}, nil
}
