// Package scoring computes client scores and looks up client interests.
package scoring

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/R3E-Network/scoring_api/internal/schema"
)

// DefaultScoreTTL bounds how long a computed score is cached.
const DefaultScoreTTL = time.Hour

// Cache is the degrading half of the store: lookups and writes never fail.
type Cache interface {
	CacheGet(ctx context.Context, key string, dst any) bool
	CacheSet(ctx context.Context, key string, value any, ttl time.Duration)
}

// Store adds the non-degrading operations interests rely on.
type Store interface {
	Cache
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Profile is the set of optional client attributes a score is derived from.
// Zero values mean "not supplied", except Gender, which is only meaningful
// when HasGender is set.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthday  time.Time
	Gender    schema.Gender
	HasGender bool
}

// Engine scores profiles through a cache and serves interests from a store.
type Engine struct {
	store    Store
	scoreTTL time.Duration
}

// New creates an engine. A non-positive ttl means DefaultScoreTTL.
func New(store Store, scoreTTL time.Duration) *Engine {
	if scoreTTL <= 0 {
		scoreTTL = DefaultScoreTTL
	}
	return &Engine{store: store, scoreTTL: scoreTTL}
}

// Score returns the weighted presence score of p. Cached results are reused;
// a cache outage only costs a recomputation.
func (e *Engine) Score(ctx context.Context, p Profile) float64 {
	key := "uid:" + p.Fingerprint()

	var cached float64
	if e.store.CacheGet(ctx, key, &cached) {
		return cached
	}

	score := Compute(p)
	e.store.CacheSet(ctx, key, score, e.scoreTTL)
	return score
}

// Compute is the uncached score of p.
func Compute(p Profile) float64 {
	var score float64
	if p.Phone != "" {
		score += 1.5
	}
	if p.Email != "" {
		score += 1.5
	}
	if !p.Birthday.IsZero() && p.HasGender {
		score += 1.5
	}
	if p.FirstName != "" && p.LastName != "" {
		score += 0.5
	}
	return score
}

// Fingerprint is a stable hex digest over every field of p.
func (p Profile) Fingerprint() string {
	birthday := ""
	if !p.Birthday.IsZero() {
		birthday = p.Birthday.Format(schema.DateLayout)
	}
	gender := ""
	if p.HasGender {
		gender = strconv.Itoa(int(p.Gender))
	}

	fields := []string{p.FirstName, p.LastName, p.Email, p.Phone, birthday, gender}
	sum := blake3.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func interestsKey(clientID int64) string {
	return "i:" + strconv.FormatInt(clientID, 10)
}

// Interests returns the interest categories stored for clientID. A missing
// entry is an error; there is no fallback.
func (e *Engine) Interests(ctx context.Context, clientID int64) ([]string, error) {
	var interests []string
	if err := e.store.Get(ctx, interestsKey(clientID), &interests); err != nil {
		return nil, err
	}
	return interests, nil
}

// SetInterests stores the interest categories of clientID. A zero ttl
// keeps them indefinitely.
func (e *Engine) SetInterests(ctx context.Context, clientID int64, interests []string, ttl time.Duration) error {
	return e.store.Set(ctx, interestsKey(clientID), interests, ttl)
}
