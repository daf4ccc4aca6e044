package features

import (
	"fmt"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/model"
)

// ColumnProfile records which raw columns a dataset has and which of them
// carry at least one non-missing value.
type ColumnProfile struct {
	present  map[string]bool
	nonEmpty map[string]bool
}

// NewColumnProfile starts a profile from a dataset header.
func NewColumnProfile(columns []string) *ColumnProfile {
	p := &ColumnProfile{
		present:  make(map[string]bool, len(columns)),
		nonEmpty: make(map[string]bool, len(columns)),
	}
	for _, c := range columns {
		p.present[c] = true
	}
	return p
}

// ProfileRecords builds a profile from a header and the dataset rows.
func ProfileRecords(columns []string, records []model.RawRecord) *ColumnProfile {
	p := NewColumnProfile(columns)
	for _, rec := range records {
		p.Observe(rec)
	}
	return p
}

// Observe marks every present column that has a value in rec.
func (p *ColumnProfile) Observe(rec model.RawRecord) {
	for col, v := range rec {
		if v == nil || !p.present[col] {
			continue
		}
		p.nonEmpty[col] = true
	}
}

// Has reports whether the column is in the header.
func (p *ColumnProfile) Has(column string) bool {
	return p.present[column]
}

// HasValues reports whether the column is present with at least one value.
func (p *ColumnProfile) HasValues(column string) bool {
	return p.present[column] && p.nonEmpty[column]
}

// DeriveSchema picks the features a dataset supports. Order follows
// model.NumericFeatureOrder and model.CategoricalFeatureOrder regardless of
// header order.
func DeriveSchema(p *ColumnProfile) (model.FeatureSchema, error) {
	var schema model.FeatureSchema

	for _, col := range model.DateSourceColumns {
		if p.HasValues(col) {
			schema.DateSource = col
			break
		}
	}

	for _, name := range model.NumericFeatureOrder {
		if name == model.FeatureDaysSinceLastDonation {
			if schema.DateSource != "" {
				schema.Numeric = append(schema.Numeric, name)
			}
			continue
		}
		if p.Has(name) {
			schema.Numeric = append(schema.Numeric, name)
		}
	}

	for _, name := range model.CategoricalFeatureOrder {
		if p.Has(name) {
			schema.Categorical = append(schema.Categorical, name)
		}
	}

	if schema.IsEmpty() {
		return model.FeatureSchema{}, fmt.Errorf("%w: check column names in the dataset", common.ErrEmptySchema)
	}
	return schema, nil
}

// ValidateSchema checks that a schema loaded from elsewhere only names known
// features, in canonical order, with no overlap between the two lists.
func ValidateSchema(s model.FeatureSchema) error {
	if err := checkOrdered(s.Numeric, model.NumericFeatureOrder); err != nil {
		return fmt.Errorf("numeric features: %w", err)
	}
	if err := checkOrdered(s.Categorical, model.CategoricalFeatureOrder); err != nil {
		return fmt.Errorf("categorical features: %w", err)
	}
	return nil
}

func checkOrdered(names, canonical []string) error {
	rank := make(map[string]int, len(canonical))
	for i, n := range canonical {
		rank[n] = i
	}
	last := -1
	for _, n := range names {
		r, ok := rank[n]
		if !ok {
			return fmt.Errorf("unrecognized feature %q", n)
		}
		if r <= last {
			return fmt.Errorf("feature %q out of order or duplicated", n)
		}
		last = r
	}
	return nil
}
