// Package schema turns untyped JSON input into validated, typed records.
//
// A Schema is an ordered table of named FieldSpecs. Construct walks the table
// in declaration order, so the first failing field determines the error.
// Keys not named by the schema are ignored.
package schema

import (
	stderrors "errors"

	"github.com/R3E-Network/scoring_api/internal/errors"
)

// Field names shared by the request schemas.
const (
	FieldAccount   = "account"
	FieldLogin     = "login"
	FieldToken     = "token"
	FieldArguments = "arguments"
	FieldMethod    = "method"

	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldBirthday  = "birthday"
	FieldGender    = "gender"

	FieldClientIDs = "client_ids"
	FieldDate      = "date"
)

// Entry names one slot of a Schema.
type Entry struct {
	Name string
	Spec FieldSpec
}

// Schema is an ordered field table. Schemas are built once and never mutated.
type Schema []Entry

// MethodEnvelope is the top-level request: identity, token, method name and
// the opaque arguments object.
var MethodEnvelope = Schema{
	{FieldAccount, KindChar.Spec(false, true)},
	{FieldLogin, KindChar.Spec(true, true)},
	{FieldToken, KindChar.Spec(true, true)},
	{FieldArguments, KindArguments.Spec(true, true)},
	{FieldMethod, KindChar.Spec(true, false)},
}

// OnlineScoreArgs are the arguments of the online_score method.
var OnlineScoreArgs = Schema{
	{FieldFirstName, KindChar.Spec(false, true)},
	{FieldLastName, KindChar.Spec(false, true)},
	{FieldEmail, KindEmail.Spec(false, true)},
	{FieldPhone, KindPhone.Spec(false, true)},
	{FieldBirthday, KindBirthday.Spec(false, true)},
	{FieldGender, KindGender.Spec(false, true)},
}

// ClientsInterestsArgs are the arguments of the clients_interests method.
var ClientsInterestsArgs = Schema{
	{FieldClientIDs, KindClientIDs.Spec(true, false)},
	{FieldDate, KindDate.Spec(false, true)},
}

// Record holds the validated values of one input object.
type Record struct {
	values map[string]Value
}

// Get returns the value of field name; the zero Value if it was not supplied.
func (r Record) Get(name string) Value {
	return r.values[name]
}

// Len returns the number of supplied fields.
func (r Record) Len() int {
	return len(r.values)
}

// Construct validates raw against s.
//
// A raw value that is not a JSON object yields an empty Record and no error;
// callers that need an object must check for one themselves.
func Construct(s Schema, raw any) (Record, error) {
	rec := Record{values: make(map[string]Value, len(s))}

	src, ok := raw.(map[string]any)
	if !ok {
		return rec, nil
	}

	for _, entry := range s {
		in, present := src[entry.Name]
		if !present {
			if entry.Spec.Required {
				return Record{}, errors.MissingField(entry.Name)
			}
			continue
		}

		out, err := entry.Spec.Validate(in)
		if err != nil {
			var ve *errors.ValidationError
			if stderrors.As(err, &ve) {
				return Record{}, ve.WithField(entry.Name)
			}
			return Record{}, err
		}
		rec.values[entry.Name] = Of(out)
	}

	return rec, nil
}
