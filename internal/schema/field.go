package schema

import (
	"fmt"
	"regexp"
	"time"

	"github.com/R3E-Network/scoring_api/internal/errors"
)

// DateLayout is the accepted textual form of dates: DD.MM.YYYY.
const DateLayout = "02.01.2006"

const dateExample = "10.02.1990"

// MaxAgeDays bounds birthdays: 70 years expressed as 70*365 days, not
// calendar years.
const MaxAgeDays = 70 * 365

// now is the clock used by the birthday rule.
var now = time.Now

// Gender is the coerced value of a gender field.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

func (g Gender) String() string {
	switch g {
	case GenderUnknown:
		return "unknown"
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return fmt.Sprintf("gender(%d)", int(g))
	}
}

// Kind selects the type check, pattern and coercion applied to a field.
type Kind int

const (
	KindAny Kind = iota
	KindChar
	KindArguments
	KindEmail
	KindPhone
	KindDate
	KindBirthday
	KindGender
	KindClientIDs
)

type kindDef struct {
	name    string
	accepts func(any) bool
	pattern *regexp.Regexp
	example string
	rule    func(any) (any, error)
}

func anchored(expr string) *regexp.Regexp {
	return regexp.MustCompile(`^(?:` + expr + `)$`)
}

var kinds = map[Kind]kindDef{
	KindAny:       {name: "Field"},
	KindChar:      {name: "CharField", accepts: isString},
	KindArguments: {name: "ArgumentsField", accepts: isObject},
	KindEmail: {
		name:    "EmailField",
		accepts: isString,
		pattern: anchored(`[A-Za-z0-9_.-]+@[A-Za-z0-9_-]+\.[A-Za-z]{2,3}`),
		example: "my.mail@mail.ru",
	},
	KindPhone: {
		name:    "PhoneField",
		accepts: func(v any) bool { return isString(v) || isNumber(v) },
		pattern: anchored(`\+?[78][0-9-]{10}`),
		example: "+79876543221",
	},
	KindDate:     {name: "DateField", example: dateExample, rule: parseDate},
	KindBirthday: {name: "BirthDayField", example: dateExample, rule: parseBirthday},
	KindGender: {
		name:    "GenderField",
		accepts: func(v any) bool { return isString(v) || isNumber(v) },
		pattern: anchored(`[0-2]`),
		example: "1",
		rule:    toGender,
	},
	KindClientIDs: {name: "ClientIDsField", rule: toClientIDs},
}

func (k Kind) String() string {
	return kinds[k].name
}

// Spec returns a FieldSpec of kind k.
func (k Kind) Spec(required, nullable bool) FieldSpec {
	def := kinds[k]
	return FieldSpec{
		Required: required,
		Nullable: nullable,
		Kind:     k,
		Pattern:  def.pattern,
		Example:  def.example,
		Rule:     def.rule,
	}
}

// FieldSpec constrains one named slot of a Schema.
type FieldSpec struct {
	Required bool
	Nullable bool
	Kind     Kind
	// Pattern must match the whole string form of the value.
	Pattern *regexp.Regexp
	Example string
	// Rule runs last and returns the coerced value.
	Rule func(raw any) (any, error)
}

// Validate checks raw against the field rules and returns the coerced value.
// A JSON null on a nullable field still has to pass the type, pattern and
// rule checks, so only untyped fields take it. Errors are
// *errors.ValidationError without a field name.
func (f FieldSpec) Validate(raw any) (any, error) {
	if !f.Nullable && IsFalsy(raw) {
		return nil, errors.NewValidationError("", errors.KindNotNullable, "Not nullable: invalid value %s", f.Kind)
	}
	if raw == nil && untyped(f) {
		return nil, nil
	}

	if accepts := kinds[f.Kind].accepts; accepts != nil && !accepts(raw) {
		return nil, errors.NewValidationError("", errors.KindTypeMismatch, "Invalid value type for %s: %T", f.Kind, raw)
	}

	if f.Pattern != nil && !f.Pattern.MatchString(StringForm(raw)) {
		return nil, errors.NewValidationError("", errors.KindPatternMismatch,
			"Validator: invalid value %s: %s%s", f.Kind, StringForm(raw), exampleSuffix(f.Example))
	}

	if f.Rule != nil {
		return f.Rule(raw)
	}
	return raw, nil
}

// untyped reports whether f declares no type, pattern or rule that a null
// could fail. Only those fields accept a null as "not supplied".
func untyped(f FieldSpec) bool {
	if f.Pattern != nil || f.Rule != nil {
		return false
	}
	return f.Kind == KindAny || f.Kind == KindArguments
}

func exampleSuffix(example string) string {
	if example == "" {
		return ""
	}
	return " (example: " + example + ")"
}

func parseDate(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, errors.NewValidationError("", errors.KindDateParse,
			"Invalid value %s %v (example: %s)", KindDate, raw, dateExample)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, errors.NewValidationError("", errors.KindDateParse,
			"Invalid value %s %s (example: %s)", KindDate, s, dateExample)
	}
	return t, nil
}

func parseBirthday(raw any) (any, error) {
	v, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	born := v.(time.Time)
	if wallClock(now()).Sub(born) > MaxAgeDays*24*time.Hour {
		return nil, errors.NewValidationError("", errors.KindAgeRange,
			"Invalid value %s age %s (Age must be less than 70 years)", KindBirthday, raw)
	}
	return born, nil
}

// wallClock drops the zone so dates parsed as UTC calendar days compare
// against the local wall clock without daylight-saving drift.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), time.UTC)
}

func toGender(raw any) (any, error) {
	switch StringForm(raw) {
	case "0":
		return GenderUnknown, nil
	case "1":
		return GenderMale, nil
	default:
		return GenderFemale, nil
	}
}

func toClientIDs(raw any) (any, error) {
	items, ok := asSlice(raw)
	if !ok {
		return nil, errors.NewValidationError("", errors.KindTypeMismatch, "Invalid value type for %s: %T", KindClientIDs, raw)
	}
	ids := make([]int64, 0, len(items))
	for i, item := range items {
		id, ok := toInt64(item)
		if !ok {
			return nil, errors.NewValidationError("", errors.KindTypeMismatch,
				"Invalid value type for %s: element %d is %T, want integer", KindClientIDs, i, item)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func asSlice(raw any) ([]any, bool) {
	switch x := raw.(type) {
	case []any:
		return x, true
	case []int64:
		out := make([]any, len(x))
		for i, v := range x {
			out[i] = v
		}
		return out, true
	case []int:
		out := make([]any, len(x))
		for i, v := range x {
			out[i] = v
		}
		return out, true
	}
	return nil, false
}
