package features

import (
	"time"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// Diagnostics counts values per feature that were present but unparseable.
type Diagnostics map[string]int

// Add merges other into d.
func (d Diagnostics) Add(other Diagnostics) {
	for k, v := range other {
		d[k] += v
	}
}

// Total returns the number of unparseable values across all features.
func (d Diagnostics) Total() int {
	n := 0
	for _, v := range d {
		n += v
	}
	return n
}

// Normalizer converts historical raw records into feature rows.
type Normalizer struct {
	// Reference is the instant dates are aged against. Zero means time.Now
	// at each call.
	Reference time.Time
	Schema    model.FeatureSchema
}

// NewNormalizer returns a normalizer for schema aged against reference.
func NewNormalizer(schema model.FeatureSchema, reference time.Time) *Normalizer {
	return &Normalizer{Schema: schema, Reference: reference}
}

func (n *Normalizer) reference() time.Time {
	if n.Reference.IsZero() {
		return time.Now()
	}
	return n.Reference
}

// Normalize never fails. Every schema name gets a value, absent columns
// included.
func (n *Normalizer) Normalize(rec model.RawRecord) (model.FeatureRow, Diagnostics) {
	row := make(model.FeatureRow, n.Schema.Len())
	diag := Diagnostics{}
	ref := n.reference()

	for _, name := range n.Schema.Numeric {
		var r Result
		switch name {
		case model.FeatureDaysSinceLastDonation:
			r = CoerceDateAge(rec[n.Schema.DateSource], ref)
		case model.FeatureDonatedEarlier:
			r = CoerceBool(rec[name])
		default:
			r = CoerceNumber(rec[name])
		}
		row[name] = r.Value
		if r.Outcome == OutcomeUnparseable {
			diag[name]++
		}
	}

	for _, name := range n.Schema.Categorical {
		r := CleanCategory(rec[name])
		row[name] = r.Value
		if r.Outcome == OutcomeUnparseable {
			diag[name]++
		}
	}

	return row, diag
}

// FromRequest replays a schema over a serving payload. Payload fields are
// already in feature form, so numeric features are coerced as numbers and
// categorical ones cleaned. Fields outside the schema are ignored.
func FromRequest(schema model.FeatureSchema, payload model.RawRecord) model.FeatureRow {
	row := make(model.FeatureRow, schema.Len())
	for _, name := range schema.Numeric {
		row[name] = CoerceNumber(payload[name]).Value
	}
	for _, name := range schema.Categorical {
		row[name] = CleanCategory(payload[name]).Value
	}
	return row
}
