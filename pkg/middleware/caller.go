// Package middleware provides shared request-context helpers for the
// agentcore API.
//
// This package lives in pkg/ (not internal/) so that hosts embedding the
// server can read the caller's trust level in their own middleware.
package middleware

import (
	"context"

	"github.com/geomind/agentcore/pkg/models"
)

type contextKey string

const callerKey contextKey = "caller"

// Caller is the authenticated principal of a request. The tier is bound to
// the API key and never changes for the lifetime of the key.
type Caller struct {
	KeyID string // key digest, safe to log
	Tier  models.TrustLevel
}

// SetCaller stores the caller in the context.
func SetCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// GetCaller returns the caller stored in the context. Requests that did not
// pass through authentication are anonymous callers at the standard tier.
func GetCaller(ctx context.Context) Caller {
	if c, ok := ctx.Value(callerKey).(Caller); ok && c.Tier.Rank() > 0 {
		return c
	}
	return Caller{KeyID: "anonymous", Tier: models.TrustStandard}
}

// GetTier returns the caller's trust level.
func GetTier(ctx context.Context) models.TrustLevel {
	return GetCaller(ctx).Tier
}
