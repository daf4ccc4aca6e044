// Package features turns raw donor records into the canonical feature rows
// a trained pipeline consumes, and decides which features a dataset supports.
package features

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// Outcome tells a legitimately absent value apart from one that was present
// but could not be parsed. Both normalize to the missing sentinel.
type Outcome int

// Coercion outcomes.
const (
	OutcomeParsed Outcome = iota
	OutcomeAbsent
	OutcomeUnparseable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeAbsent:
		return "absent"
	case OutcomeUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Result is the value produced by a coercion together with how it was reached.
type Result struct {
	Value   model.Value
	Outcome Outcome
}

func parsed(v model.Value) Result { return Result{Value: v, Outcome: OutcomeParsed} }

func absent() Result { return Result{Value: model.Missing(), Outcome: OutcomeAbsent} }

func unparseable() Result { return Result{Value: model.Missing(), Outcome: OutcomeUnparseable} }

// dateNullTokens are compared after trimming and lower-casing.
var dateNullTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"none": {},
}

// CoerceNumber parses raw as a float. NaN counts as absent.
func CoerceNumber(raw any) Result {
	switch v := raw.(type) {
	case nil:
		return absent()
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return parsed(model.Number(float64(v)))
	case int64:
		return parsed(model.Number(float64(v)))
	case bool:
		if v {
			return parsed(model.Number(1))
		}
		return parsed(model.Number(0))
	case json.Number:
		return CoerceNumber(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return absent()
		}
		if hasHexPrefix(s) {
			return unparseable()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
				return finite(f)
			}
			return unparseable()
		}
		return finite(f)
	default:
		return unparseable()
	}
}

func hasHexPrefix(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// finite keeps infinities; they are rejected later by the pipeline with a
// diagnostic instead of being silently imputed.
func finite(f float64) Result {
	if math.IsNaN(f) {
		return absent()
	}
	return parsed(model.Number(f))
}

// CoerceDateAge parses raw as a free-text date and returns the whole number
// of days between the reference and that date.
func CoerceDateAge(raw any, reference time.Time) Result {
	if raw == nil {
		return absent()
	}
	if f, ok := raw.(float64); ok && math.IsNaN(f) {
		return absent()
	}

	s := strings.TrimSpace(stringify(raw))
	if _, isNull := dateNullTokens[strings.ToLower(s)]; isNull {
		return absent()
	}

	// Long digit runs would otherwise be read as Unix timestamps.
	if len(s) > 8 && isDigits(s) {
		return unparseable()
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return unparseable()
	}
	// Year-less inputs such as "12/31" come back as year 0.
	if t.Year() < minDateYear {
		return unparseable()
	}
	return parsed(model.Number(float64(DaysBetween(reference, t))))
}

// minDateYear is the earliest year accepted as a donation date.
const minDateYear = 1900

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// DaysBetween counts calendar days from then to ref, ignoring time of day.
func DaysBetween(ref, then time.Time) int {
	return int(civilDays(ref.Year(), int(ref.Month()), ref.Day()) -
		civilDays(then.Year(), int(then.Month()), then.Day()))
}

// civilDays returns the day number of y-m-d in the proleptic Gregorian
// calendar, with 1970-01-01 as day zero.
func civilDays(y, m, d int) int64 {
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return int64(era)*146097 + int64(doe) - 719468
}

// CoerceBool maps "true"/"false" in any letter case to 1/0.
func CoerceBool(raw any) Result {
	switch v := raw.(type) {
	case nil:
		return absent()
	case bool:
		if v {
			return parsed(model.Number(1))
		}
		return parsed(model.Number(0))
	case string:
		switch strings.ToLower(v) {
		case "true":
			return parsed(model.Number(1))
		case "false":
			return parsed(model.Number(0))
		case "":
			return absent()
		}
		return unparseable()
	default:
		return unparseable()
	}
}

// CleanCategory trims raw and treats the literal "nan" as missing. Letter
// case is preserved, so "O+" and "o+" are different categories.
func CleanCategory(raw any) Result {
	if raw == nil {
		return absent()
	}
	if f, ok := raw.(float64); ok && math.IsNaN(f) {
		return absent()
	}
	s := strings.TrimSpace(stringify(raw))
	if s == "nan" {
		return absent()
	}
	return parsed(model.Category(s))
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case json.Number:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
