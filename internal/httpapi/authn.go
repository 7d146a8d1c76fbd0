package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"

	"rolodex.dev/internal/auth"
	"rolodex.dev/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Gate outcomes, recorded as the auth_gate_outcomes_total label.
const (
	OutcomePublic             = "public"
	OutcomeAnonymous          = "anonymous"
	OutcomeVerificationFailed = "verification_failed"
	OutcomeResolutionFailed   = "resolution_failed"
	OutcomeBound              = "bound"
)

// DefaultPublicPrefixes lists the paths the gate never inspects.
var DefaultPublicPrefixes = []string{"/api/auth/"}

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// PrincipalResolver maps a token subject to the request principal.
type PrincipalResolver interface {
	Principal(ctx context.Context, identifier string) (auth.Principal, error)
}

// Gate binds the principal named by a valid bearer token to the request
// context. It never rejects a request: any failure leaves the request
// anonymous and handlers that need a principal answer 401 themselves.
type Gate struct {
	verifier       TokenVerifier
	resolver       PrincipalResolver
	publicPrefixes []string
}

func NewGate(verifier TokenVerifier, resolver PrincipalResolver, publicPrefixes []string) *Gate {
	if publicPrefixes == nil {
		publicPrefixes = DefaultPublicPrefixes
	}
	return &Gate{
		verifier:       verifier,
		resolver:       resolver,
		publicPrefixes: append([]string(nil), publicPrefixes...),
	}
}

func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, outcome := g.authenticate(r)
		obs.RecordAuthOutcome(outcome)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) authenticate(r *http.Request) (context.Context, string) {
	ctx := r.Context()
	if r.Method == http.MethodOptions || g.isPublic(r.URL.Path) {
		return ctx, OutcomePublic
	}

	token, ok := extractBearerToken(r.Header.Get(authHeader))
	if !ok {
		return ctx, OutcomeAnonymous
	}

	subject, err := g.verifier.Verify(token)
	if err != nil {
		ev := obs.Logger().Debug()
		if !auth.IsTokenError(err) {
			ev = obs.Logger().Warn().Err(err)
		}
		ev.Str("request_id", RequestIDFromContext(ctx)).
			Str("kind", auth.KindOf(err).String()).
			Msg("auth_token_rejected")
		return ctx, OutcomeVerificationFailed
	}

	principal, err := g.resolver.Principal(ctx, subject)
	if err != nil {
		ev := obs.Logger().Debug()
		if !errors.Is(err, auth.ErrUserNotFound) {
			ev = obs.Logger().Warn().Err(err)
		}
		ev.Str("request_id", RequestIDFromContext(ctx)).
			Str("kind", auth.KindOf(err).String()).
			Msg("auth_principal_unresolved")
		return ctx, OutcomeResolutionFailed
	}

	return auth.ContextWithPrincipal(ctx, principal), OutcomeBound
}

func (g *Gate) isPublic(p string) bool {
	if p == "" {
		p = "/"
	}
	clean := path.Clean(p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	for _, prefix := range g.publicPrefixes {
		if strings.HasPrefix(clean, prefix) || clean == strings.TrimSuffix(prefix, "/") {
			return true
		}
	}
	return false
}

// extractBearerToken accepts "Bearer <token>" with a case-insensitive
// scheme. Anything else reports false.
func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
