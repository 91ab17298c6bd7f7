package api

import (
	"time"

	"github.com/R3E-Network/scoring_api/internal/errors"
	"github.com/R3E-Network/scoring_api/internal/schema"
	"github.com/R3E-Network/scoring_api/internal/scoring"
)

// Supported method names.
const (
	MethodOnlineScore      = "online_score"
	MethodClientsInterests = "clients_interests"
)

// MethodRequest is the validated request envelope.
type MethodRequest struct {
	Account   string
	Login     string
	Token     string
	Method    string
	Arguments map[string]any
}

// NewMethodRequest validates a decoded JSON body. Unlike schema.Construct,
// it rejects anything that is not an object.
func NewMethodRequest(body any) (*MethodRequest, error) {
	if _, ok := body.(map[string]any); !ok {
		return nil, errors.NewValidationError("", errors.KindInvalidRequest, "request must be a JSON object")
	}

	rec, err := schema.Construct(schema.MethodEnvelope, body)
	if err != nil {
		return nil, err
	}

	return &MethodRequest{
		Account:   rec.Get(schema.FieldAccount).String(),
		Login:     rec.Get(schema.FieldLogin).String(),
		Token:     rec.Get(schema.FieldToken).String(),
		Method:    rec.Get(schema.FieldMethod).String(),
		Arguments: rec.Get(schema.FieldArguments).Map(),
	}, nil
}

// AccountName returns the account the token was issued for.
func (r *MethodRequest) AccountName() string { return r.Account }

// LoginName returns the login the token was issued for.
func (r *MethodRequest) LoginName() string { return r.Login }

// TokenValue returns the supplied token.
func (r *MethodRequest) TokenValue() string { return r.Token }

// arguments never returns nil, so a null arguments object is validated as
// an empty one.
func (r *MethodRequest) arguments() map[string]any {
	if r.Arguments == nil {
		return map[string]any{}
	}
	return r.Arguments
}

// OnlineScoreRequest holds the arguments of online_score.
type OnlineScoreRequest struct {
	Profile scoring.Profile
	// Has lists the supplied non-empty fields, in schema order.
	Has []string
}

// NewOnlineScoreRequest validates online_score arguments and records which
// fields were supplied.
func NewOnlineScoreRequest(args map[string]any) (*OnlineScoreRequest, error) {
	rec, err := schema.Construct(schema.OnlineScoreArgs, args)
	if err != nil {
		return nil, err
	}

	req := &OnlineScoreRequest{
		Profile: scoring.Profile{
			FirstName: rec.Get(schema.FieldFirstName).String(),
			LastName:  rec.Get(schema.FieldLastName).String(),
			Email:     rec.Get(schema.FieldEmail).String(),
			Phone:     rec.Get(schema.FieldPhone).String(),
		},
	}
	if birthday, ok := rec.Get(schema.FieldBirthday).Time(); ok {
		req.Profile.Birthday = birthday
	}
	if gender, ok := rec.Get(schema.FieldGender).Gender(); ok {
		req.Profile.Gender = gender
		req.Profile.HasGender = true
	}

	for _, entry := range schema.OnlineScoreArgs {
		if !rec.Get(entry.Name).Empty() {
			req.Has = append(req.Has, entry.Name)
		}
	}
	return req, nil
}

// ClientsInterestsRequest holds the arguments of clients_interests.
type ClientsInterestsRequest struct {
	ClientIDs []int64
	// Date is accepted and validated but does not affect the lookup.
	Date time.Time
}

// NewClientsInterestsRequest validates clients_interests arguments.
func NewClientsInterestsRequest(args map[string]any) (*ClientsInterestsRequest, error) {
	rec, err := schema.Construct(schema.ClientsInterestsArgs, args)
	if err != nil {
		return nil, err
	}

	req := &ClientsInterestsRequest{ClientIDs: rec.Get(schema.FieldClientIDs).IDs()}
	if date, ok := rec.Get(schema.FieldDate).Time(); ok {
		req.Date = date
	}
	return req, nil
}
