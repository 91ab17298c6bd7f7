package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/scoring_api/internal/errors"
)

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestField_Valid(t *testing.T) {
	tests := []struct {
		required, nullable bool
		value              any
	}{
		{true, false, "Value"},
		{true, false, 123},
		{true, false, 123.0},
		{false, false, "Another"},
		{false, true, nil},
	}

	for _, tt := range tests {
		got, err := KindAny.Spec(tt.required, tt.nullable).Validate(tt.value)
		require.NoError(t, err, "value %v", tt.value)
		assert.Equal(t, tt.value, got)
	}
}

func TestField_Invalid(t *testing.T) {
	tests := []struct {
		required, nullable bool
		value              any
	}{
		{true, false, nil},
		{true, false, ""},
		{false, false, ""},
	}

	for _, tt := range tests {
		_, err := KindAny.Spec(tt.required, tt.nullable).Validate(tt.value)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Not nullable")
		assert.Equal(t, errors.KindNotNullable, errors.KindOf(err))
	}
}

func TestField_NotNullableRejectsEveryEmpty(t *testing.T) {
	empties := []any{nil, "", json.Number("0"), 0, 0.0, false, []any{}, map[string]any{}}
	allKinds := []Kind{KindAny, KindChar, KindArguments, KindEmail, KindPhone, KindDate, KindBirthday, KindGender, KindClientIDs}

	for _, kind := range allKinds {
		for _, required := range []bool{true, false} {
			for _, empty := range empties {
				_, err := kind.Spec(required, false).Validate(empty)
				assert.Equal(t, errors.KindNotNullable, errors.KindOf(err),
					"%s required=%v value=%#v", kind, required, empty)
			}
		}
	}
}

func TestCustomField_Valid(t *testing.T) {
	fixClock(t, time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		kind     Kind
		value    any
		expected any
	}{
		{KindEmail, "test@mail.ru", "test@mail.ru"},
		{KindPhone, "71234567890", "71234567890"},
		{KindPhone, "+71234567890", "+71234567890"},
		{KindPhone, "8123-456-789", "8123-456-789"},
		{KindPhone, json.Number("71234567890"), json.Number("71234567890")},
		{KindPhone, 71234567890, 71234567890},
		{KindDate, "10.10.2000", day(2000, time.October, 10)},
		{KindDate, "01.01.1900", day(1900, time.January, 1)},
		{KindBirthday, "01.01.1990", day(1990, time.January, 1)},
		{KindGender, "0", GenderUnknown},
		{KindGender, "1", GenderMale},
		{KindGender, json.Number("2"), GenderFemale},
		{KindChar, "Александр", "Александр"},
		{KindArguments, map[string]any{"a": 1}, map[string]any{"a": 1}},
		{KindClientIDs, []any{json.Number("1"), json.Number("2")}, []int64{1, 2}},
		{KindClientIDs, []int{3}, []int64{3}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := tt.kind.Spec(true, true).Validate(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCustomField_Invalid(t *testing.T) {
	fixClock(t, time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		name     string
		kind     Kind
		value    any
		contains string
		errKind  errors.ValidationKind
	}{
		{"char type", KindChar, 123, "Invalid value type", errors.KindTypeMismatch},
		{"email tld digit", KindEmail, "test@mail.1ru", "Validator", errors.KindPatternMismatch},
		{"email no at", KindEmail, "mail.ru", "Validator", errors.KindPatternMismatch},
		{"phone empty", KindPhone, "", "Validator", errors.KindPatternMismatch},
		{"phone short", KindPhone, "7123456789", "Validator", errors.KindPatternMismatch},
		{"phone leading dash", KindPhone, "-71234567890", "Validator", errors.KindPatternMismatch},
		{"phone wrong prefix", KindPhone, "91234567890", "Validator", errors.KindPatternMismatch},
		{"phone list", KindPhone, []any{"71234567890"}, "Invalid value type", errors.KindTypeMismatch},
		{"date layout", KindDate, "011.01.1900", "Invalid value", errors.KindDateParse},
		{"date calendar", KindDate, "31.02.2000", "Invalid value", errors.KindDateParse},
		{"date number", KindDate, json.Number("10102000"), "Invalid value", errors.KindDateParse},
		{"birthday age", KindBirthday, "01.01.1950", "age", errors.KindAgeRange},
		{"gender range", KindGender, "3", "Validator", errors.KindPatternMismatch},
		{"arguments list", KindArguments, []any{}, "Invalid value type", errors.KindTypeMismatch},
		{"client ids scalar", KindClientIDs, json.Number("1"), "Invalid value type", errors.KindTypeMismatch},
		{"client ids strings", KindClientIDs, []any{"a"}, "element 0", errors.KindTypeMismatch},
		{"client ids fraction", KindClientIDs, []any{json.Number("1.5")}, "element 0", errors.KindTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.kind.Spec(true, true).Validate(tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, tt.errKind, errors.KindOf(err))
		})
	}
}

func TestBirthday_AgeBoundary(t *testing.T) {
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	fixClock(t, today)

	oldest := today.AddDate(0, 0, -MaxAgeDays)
	got, err := KindBirthday.Spec(false, true).Validate(oldest.Format(DateLayout))
	require.NoError(t, err)
	assert.Equal(t, oldest, got)

	tooOld := oldest.AddDate(0, 0, -1)
	_, err = KindBirthday.Spec(false, true).Validate(tooOld.Format(DateLayout))
	assert.Equal(t, errors.KindAgeRange, errors.KindOf(err))
}

func TestField_NullableNullStillChecked(t *testing.T) {
	tests := []struct {
		kind    Kind
		errKind errors.ValidationKind
	}{
		{KindChar, errors.KindTypeMismatch},
		{KindEmail, errors.KindTypeMismatch},
		{KindPhone, errors.KindTypeMismatch},
		{KindGender, errors.KindTypeMismatch},
		{KindDate, errors.KindDateParse},
		{KindBirthday, errors.KindDateParse},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			_, err := tt.kind.Spec(false, true).Validate(nil)
			require.Error(t, err)
			assert.Equal(t, tt.errKind, errors.KindOf(err))
		})
	}
}

func TestField_NullableNullOnUntypedField(t *testing.T) {
	for _, kind := range []Kind{KindAny, KindArguments} {
		got, err := kind.Spec(false, true).Validate(nil)
		require.NoError(t, err, kind.String())
		assert.Nil(t, got)
	}
}

func TestIsFalsy(t *testing.T) {
	assert.True(t, IsFalsy(nil))
	assert.True(t, IsFalsy(""))
	assert.True(t, IsFalsy(json.Number("0.0")))
	assert.True(t, IsFalsy(time.Time{}))
	assert.True(t, IsFalsy([]int64{}))
	assert.False(t, IsFalsy("0"))
	assert.False(t, IsFalsy(json.Number("1")))
	assert.False(t, IsFalsy(GenderMale))
	assert.True(t, IsFalsy(GenderUnknown))
	assert.False(t, IsFalsy([]any{nil}))
}

func TestStringForm(t *testing.T) {
	assert.Equal(t, "71234567890", StringForm(json.Number("71234567890")))
	assert.Equal(t, "71234567890", StringForm(71234567890))
	assert.Equal(t, "71234567890", StringForm(float64(71234567890)))
	assert.Equal(t, "true", StringForm(true))
}
