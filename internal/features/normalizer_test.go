package features

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/model"
)

func fullSchema() model.FeatureSchema {
	return model.FeatureSchema{
		DateSource:  model.ColumnLastBridgeDonationDate,
		Numeric:     append([]string(nil), model.NumericFeatureOrder...),
		Categorical: append([]string(nil), model.CategoricalFeatureOrder...),
	}
}

func rowKeys(row model.FeatureRow) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func schemaKeys(s model.FeatureSchema) []string {
	keys := s.Names()
	sort.Strings(keys)
	return keys
}

func TestNormalize_KeySetMatchesSchema(t *testing.T) {
	schema := fullSchema()
	n := NewNormalizer(schema, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	records := []model.RawRecord{
		{},
		{"frequency_in_days": "30"},
		{"unrelated": "x", "another": 4},
		{
			"frequency_in_days":         "90",
			"calls_to_donations_ratio":  "1.5",
			"last_bridge_donation_date": "2024-01-01",
			"donated_earlier":           "True",
			"blood_group":               "B+",
			"gender":                    "Female",
		},
	}

	for _, rec := range records {
		row, _ := n.Normalize(rec)
		assert.Equal(t, schemaKeys(schema), rowKeys(row))
	}
}

func TestNormalize_Values(t *testing.T) {
	n := NewNormalizer(fullSchema(), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	row, diag := n.Normalize(model.RawRecord{
		"frequency_in_days":         "90",
		"calls_to_donations_ratio":  "abc",
		"last_bridge_donation_date": "2024-01-01",
		"last_transfusion_date":     "2020-01-01",
		"donated_earlier":           "FALSE",
		"blood_group":               " O+ ",
		"gender":                    "nan",
	})

	assert.Equal(t, model.Number(90), row["frequency_in_days"])
	assert.True(t, row["calls_to_donations_ratio"].IsMissing())
	assert.Equal(t, model.Number(9), row["days_since_last_donation"], "date source comes from the schema, not the record")
	assert.Equal(t, model.Number(0), row["donated_earlier"])
	assert.Equal(t, model.Category("O+"), row["blood_group"])
	assert.True(t, row["gender"].IsMissing())

	assert.Equal(t, Diagnostics{"calls_to_donations_ratio": 1}, diag)
	assert.Equal(t, 1, diag.Total())
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewNormalizer(fullSchema(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	rec := model.RawRecord{
		"frequency_in_days":         "12",
		"last_bridge_donation_date": "March 3, 2024",
		"blood_group":               "AB-",
	}

	first, _ := n.Normalize(rec)
	second, _ := n.Normalize(rec)
	assert.Equal(t, first, second)
}

func TestFromRequest(t *testing.T) {
	schema := model.FeatureSchema{
		Numeric:     []string{"frequency_in_days", "days_since_last_donation", "donated_earlier"},
		Categorical: []string{"blood_group"},
	}

	t.Run("zero recognized fields", func(t *testing.T) {
		row := FromRequest(schema, model.RawRecord{"age": 30})
		require.Len(t, row, 4)
		for _, name := range schema.Names() {
			assert.True(t, row[name].IsMissing(), name)
		}
	})

	t.Run("feature-form payload", func(t *testing.T) {
		row := FromRequest(schema, model.RawRecord{
			"frequency_in_days":        45.0,
			"days_since_last_donation": 12.0,
			"donated_earlier":          1.0,
			"blood_group":              "A+",
			"gender":                   "Male",
		})
		assert.Equal(t, schemaKeys(schema), rowKeys(row))
		assert.Equal(t, model.Number(12), row["days_since_last_donation"])
		assert.Equal(t, model.Number(1), row["donated_earlier"])
		assert.Equal(t, model.Category("A+"), row["blood_group"])
	})
}

func TestResolveTarget(t *testing.T) {
	for _, raw := range []any{"Active", " active ", "ACTIVE"} {
		got := ResolveTarget(raw)
		assert.True(t, got.Resolved, raw)
		assert.Equal(t, 1, got.Label)
	}

	got := ResolveTarget("Inactive")
	assert.True(t, got.Resolved)
	assert.Equal(t, 0, got.Label)

	assert.False(t, ResolveTarget("unknown").Resolved)
	assert.False(t, ResolveTarget(nil).Resolved)
	assert.False(t, ResolveTarget(1).Resolved)
}

func TestLabelColumn(t *testing.T) {
	col, err := LabelColumn(NewColumnProfile([]string{"status", "user_donation_active_status"}))
	require.NoError(t, err)
	assert.Equal(t, "user_donation_active_status", col)

	col, err = LabelColumn(NewColumnProfile([]string{"status"}))
	require.NoError(t, err)
	assert.Equal(t, "status", col)

	_, err = LabelColumn(NewColumnProfile([]string{"gender"}))
	assert.ErrorIs(t, err, common.ErrMissingLabelColumn)
}
