// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Feature names as they appear in a FeatureSchema and in serving requests.
const (
	FeatureFrequencyInDays        = "frequency_in_days"
	FeatureCallsToDonationsRatio  = "calls_to_donations_ratio"
	FeatureDaysSinceLastDonation  = "days_since_last_donation"
	FeatureDonatedEarlier         = "donated_earlier"
	FeatureBloodGroup             = "blood_group"
	FeatureGender                 = "gender"
	ColumnLastBridgeDonationDate  = "last_bridge_donation_date"
	ColumnLastTransfusionDate     = "last_transfusion_date"
	ColumnUserDonationActiveState = "user_donation_active_status"
	ColumnStatus                  = "status"
)

// NumericFeatureOrder is the canonical order numeric features are considered in.
var NumericFeatureOrder = []string{
	FeatureFrequencyInDays,
	FeatureCallsToDonationsRatio,
	FeatureDaysSinceLastDonation,
	FeatureDonatedEarlier,
}

// CategoricalFeatureOrder is the canonical order categorical features are considered in.
var CategoricalFeatureOrder = []string{
	FeatureBloodGroup,
	FeatureGender,
}

// DateSourceColumns lists the raw date columns for days_since_last_donation, highest priority first.
var DateSourceColumns = []string{
	ColumnLastBridgeDonationDate,
	ColumnLastTransfusionDate,
}

// LabelColumns lists the accepted raw label columns, highest priority first.
var LabelColumns = []string{
	ColumnUserDonationActiveState,
	ColumnStatus,
}

// SchemaFormatVersion is bumped whenever the meaning of a persisted schema changes.
const SchemaFormatVersion = 1

// RawRecord is one row of historical or request data keyed by raw column name.
// Values are strings, numbers, bools or absent.
type RawRecord map[string]any

// FeatureSchema is the ordered set of features a trained pipeline expects.
type FeatureSchema struct {
	// DateSource is the raw column days_since_last_donation was derived from
	// at training time. Serving never reads it.
	DateSource  string
	Numeric     []string
	Categorical []string
}

// Names returns numeric names followed by categorical names.
func (s FeatureSchema) Names() []string {
	names := make([]string, 0, len(s.Numeric)+len(s.Categorical))
	names = append(names, s.Numeric...)
	return append(names, s.Categorical...)
}

// Len returns the total number of features.
func (s FeatureSchema) Len() int {
	return len(s.Numeric) + len(s.Categorical)
}

// IsEmpty reports whether the schema has no features at all.
func (s FeatureSchema) IsEmpty() bool {
	return s.Len() == 0
}

// Clone returns a deep copy so callers cannot mutate a shared schema.
func (s FeatureSchema) Clone() FeatureSchema {
	return FeatureSchema{
		DateSource:  s.DateSource,
		Numeric:     append([]string(nil), s.Numeric...),
		Categorical: append([]string(nil), s.Categorical...),
	}
}

// Equal compares names and order of both feature lists.
func (s FeatureSchema) Equal(other FeatureSchema) bool {
	return equalStrings(s.Numeric, other.Numeric) && equalStrings(s.Categorical, other.Categorical)
}

// Fingerprint identifies the schema shape. DateSource is excluded because
// serving never depends on it.
func (s FeatureSchema) Fingerprint() string {
	var b strings.Builder
	b.WriteString("v")
	b.WriteString(strconv.Itoa(SchemaFormatVersion))
	b.WriteString("|numeric:")
	b.WriteString(strings.Join(s.Numeric, ","))
	b.WriteString("|categorical:")
	b.WriteString(strings.Join(s.Categorical, ","))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ValueKind discriminates the Value union.
type ValueKind int

// Value kinds. The zero kind is the missing sentinel.
const (
	KindMissing ValueKind = iota
	KindNumber
	KindCategory
)

// Value is a normalized feature value. The zero Value is the missing sentinel.
type Value struct {
	Str  string
	Num  float64
	Kind ValueKind
}

// Missing returns the missing sentinel.
func Missing() Value { return Value{} }

// Number wraps a numeric feature value.
func Number(v float64) Value { return Value{Kind: KindNumber, Num: v} }

// Category wraps a categorical feature value.
func Category(v string) Value { return Value{Kind: KindCategory, Str: v} }

// IsMissing reports whether v is the missing sentinel.
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindCategory:
		return v.Str
	default:
		return "<missing>"
	}
}

// FeatureRow maps every schema name to a normalized value.
type FeatureRow map[string]Value

// PredictionResult is the serving response. Fingerprint and RunID name the
// artifact that produced it and are not part of the wire format.
type PredictionResult struct {
	Score       *float64 `json:"score"`
	Fingerprint string   `json:"-"`
	RunID       string   `json:"-"`
	Label       int      `json:"label"`
}
