// Package api validates method requests, authenticates them and routes them
// to the scoring engine.
package api

import (
	"context"
	"strconv"

	"github.com/R3E-Network/scoring_api/internal/auth"
	"github.com/R3E-Network/scoring_api/internal/errors"
	"github.com/R3E-Network/scoring_api/internal/scoring"
)

// DefaultAdminScore is returned to administrators by online_score.
const DefaultAdminScore = 42

// Scorer is the part of scoring.Engine the dispatcher needs.
type Scorer interface {
	Score(ctx context.Context, p scoring.Profile) float64
	Interests(ctx context.Context, clientID int64) ([]string, error)
}

// Context collects per-request facts for the access log. It is owned by one
// request.
type Context struct {
	RequestID string
	Login     string
	Method    string
	// Has lists the non-empty online_score arguments.
	Has []string
	// NClients is the number of ids requested by clients_interests.
	NClients int
}

type handler func(ctx context.Context, req *MethodRequest, rc *Context) (any, error)

// Options tunes a Dispatcher.
type Options struct {
	AdminScore float64
}

// Dispatcher resolves a method name to its handler.
type Dispatcher struct {
	auth       *auth.Authenticator
	scorer     Scorer
	adminScore float64
	methods    map[string]handler
}

// NewDispatcher builds the method table. A zero AdminScore means
// DefaultAdminScore.
func NewDispatcher(a *auth.Authenticator, scorer Scorer, opts Options) *Dispatcher {
	if opts.AdminScore == 0 {
		opts.AdminScore = DefaultAdminScore
	}
	d := &Dispatcher{
		auth:       a,
		scorer:     scorer,
		adminScore: opts.AdminScore,
	}
	d.methods = map[string]handler{
		MethodOnlineScore:      d.onlineScore,
		MethodClientsInterests: d.clientsInterests,
	}
	return d
}

// Dispatch validates body, authenticates it and runs the named method.
// Authentication is checked before the method name, so an unauthenticated
// caller never learns which methods exist. rc may be nil.
func (d *Dispatcher) Dispatch(ctx context.Context, body any, rc *Context) (any, error) {
	if rc == nil {
		rc = &Context{}
	}

	req, err := NewMethodRequest(body)
	if err != nil {
		return nil, err
	}
	rc.Login = req.Login
	rc.Method = req.Method

	if !d.auth.IsAuthentic(req) {
		return nil, errors.ErrForbidden
	}

	h, ok := d.methods[req.Method]
	if !ok {
		return nil, errors.UnknownMethod(req.Method)
	}
	return h(ctx, req, rc)
}

func (d *Dispatcher) onlineScore(ctx context.Context, req *MethodRequest, rc *Context) (any, error) {
	args, err := NewOnlineScoreRequest(req.arguments())
	if err != nil {
		return nil, err
	}
	rc.Has = args.Has

	if d.auth.IsAdmin(req.Login) {
		return map[string]any{"score": d.adminScore}, nil
	}
	return map[string]any{"score": d.scorer.Score(ctx, args.Profile)}, nil
}

func (d *Dispatcher) clientsInterests(ctx context.Context, req *MethodRequest, rc *Context) (any, error) {
	args, err := NewClientsInterestsRequest(req.arguments())
	if err != nil {
		return nil, err
	}
	rc.NClients = len(args.ClientIDs)

	result := make(map[string][]string, len(args.ClientIDs))
	for _, id := range args.ClientIDs {
		interests, err := d.scorer.Interests(ctx, id)
		if err != nil {
			return nil, err
		}
		result[strconv.FormatInt(id, 10)] = interests
	}
	return result, nil
}
