package mcp

import (
	"context"
	"strings"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/interview/internal/auth"
)

type contextKey int

const (
	requestIDKey contextKey = iota
)

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// principalKeyID names the authenticated key for logs.
func principalKeyID(ctx context.Context) string {
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		return p.KeyID
	}
	return ""
}

// Authenticator authenticates API keys and resolves tenant capabilities.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// authMiddleware authenticates tool calls from HTTP headers. Calls without a
// valid key proceed without a principal and are refused by the tool.
func authMiddleware(a Authenticator) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if method != "tools/call" {
				return next(ctx, method, req)
			}
			var token string
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				token = auth.TokenFromHeader(extra.Header)
			}
			if p, err := a.Authenticate(ctx, token); err == nil {
				ctx = auth.WithPrincipal(ctx, p)
			}
			return next(ctx, method, req)
		}
	}
}

// localMiddleware grants every call the given role across tenants. It serves
// stdio, where the caller is the local process owner.
func localMiddleware(role string) sdkmcp.Middleware {
	principal := &auth.Principal{KeyID: "local", Tenant: auth.AnyTenant, Role: role}
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(auth.WithPrincipal(ctx, principal), method, req)
		}
	}
}

// requestIDMiddleware tags each call with X-Request-Id (HTTP) or a fresh id.
func requestIDMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			var id string
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				id = strings.TrimSpace(extra.Header.Get("X-Request-Id"))
			}
			if id == "" {
				id = uuid.NewString()
			}
			return next(context.WithValue(ctx, requestIDKey, id), method, req)
		}
	}
}
