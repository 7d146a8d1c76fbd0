package httpapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"rolodex.dev/internal/auth"
	"rolodex.dev/internal/ids"
	"rolodex.dev/internal/obs"
)

var testSecret = []byte("gate-test-secret-0123456789")

type gateFixture struct {
	codec *auth.Codec
	users *auth.InMemoryUsers
	alice *auth.User
	bob   *auth.User
	gate  *Gate
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	codec, err := auth.NewCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	users := auth.NewInMemoryUsers()
	alice := &auth.User{ID: ids.New(), Email: "alice@example.com"}
	bob := &auth.User{ID: ids.New(), PhoneNumber: "+15550100"}
	for _, u := range []*auth.User{alice, bob} {
		if err := users.Save(context.Background(), u); err != nil {
			t.Fatalf("save user: %v", err)
		}
	}
	return &gateFixture{
		codec: codec,
		users: users,
		alice: alice,
		bob:   bob,
		gate:  NewGate(codec, auth.NewResolver(users), nil),
	}
}

func (f *gateFixture) token(t *testing.T, subject string) string {
	t.Helper()
	cred, err := f.codec.Issue(subject)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return cred.Token
}

// serve runs req through the gate and returns the principal seen downstream.
func (f *gateFixture) serve(req *http.Request) (auth.Principal, bool) {
	var (
		got   auth.Principal
		bound bool
	)
	h := f.gate.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, bound = auth.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return got, bound
}

func bearerRequest(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// gateOutcome scrapes the current value of auth_gate_outcomes_total.
func gateOutcome(t *testing.T, outcome string) float64 {
	t.Helper()
	obs.Init()
	rr := httptest.NewRecorder()
	obs.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	prefix := fmt.Sprintf("auth_gate_outcomes_total{outcome=%q} ", outcome)
	sc := bufio.NewScanner(strings.NewReader(rr.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimPrefix(line, prefix), 64)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		return v
	}
	return 0
}

func TestGateBindsPrincipalForValidToken(t *testing.T) {
	f := newGateFixture(t)
	before := gateOutcome(t, OutcomeBound)

	p, ok := f.serve(bearerRequest(http.MethodGet, "/api/contacts", f.token(t, "alice@example.com")))
	if !ok {
		t.Fatal("expected principal to be bound")
	}
	if p.UserID != f.alice.ID || p.Identifier != "alice@example.com" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if got := gateOutcome(t, OutcomeBound); got != before+1 {
		t.Fatalf("bound outcome = %v, want %v", got, before+1)
	}
}

func TestGateResolvesPhoneSubject(t *testing.T) {
	f := newGateFixture(t)

	p, ok := f.serve(bearerRequest(http.MethodGet, "/api/contacts", f.token(t, "+15550100")))
	if !ok || p.UserID != f.bob.ID {
		t.Fatalf("expected bob, got %+v (bound=%v)", p, ok)
	}
}

func TestGateSkipsPublicPrefixes(t *testing.T) {
	f := newGateFixture(t)
	before := gateOutcome(t, OutcomePublic)

	for _, target := range []string{"/api/auth/login", "/api/auth/register", "/api/auth"} {
		if _, ok := f.serve(bearerRequest(http.MethodPost, target, "garbage")); ok {
			t.Fatalf("%s: principal bound on public path", target)
		}
	}
	if got := gateOutcome(t, OutcomePublic); got != before+3 {
		t.Fatalf("public outcome = %v, want %v", got, before+3)
	}
}

func TestGateCleansPathBeforePrefixMatch(t *testing.T) {
	f := newGateFixture(t)

	req := bearerRequest(http.MethodGet, "/api/contacts", f.token(t, "alice@example.com"))
	req.URL.Path = "/api/auth/../contacts"
	if _, ok := f.serve(req); !ok {
		t.Fatal("dot segments must not make a protected path public")
	}
}

func TestGateLetsPreflightThrough(t *testing.T) {
	f := newGateFixture(t)

	if _, ok := f.serve(bearerRequest(http.MethodOptions, "/api/contacts", "garbage")); ok {
		t.Fatal("preflight must not bind a principal")
	}
}

func TestGateFallsThroughAnonymously(t *testing.T) {
	f := newGateFixture(t)

	expired, err := auth.NewCodec(testSecret, time.Hour, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	old, err := expired.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := auth.NewCodec([]byte("a-completely-different-secret"), time.Hour)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	forged, err := other.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// bob's claims under alice's signature
	aliceParts := strings.Split(f.token(t, "alice@example.com"), ".")
	bobParts := strings.Split(f.token(t, "+15550100"), ".")
	tampered := strings.Join([]string{aliceParts[0], bobParts[1], aliceParts[2]}, ".")

	cases := []struct {
		name    string
		header  string
		outcome string
	}{
		{"no header", "", OutcomeAnonymous},
		{"basic scheme", "Basic YWxpY2U6cHc=", OutcomeAnonymous},
		{"empty bearer", "Bearer ", OutcomeAnonymous},
		{"garbage", "Bearer not-a-jwt", OutcomeVerificationFailed},
		{"expired", "Bearer " + old.Token, OutcomeVerificationFailed},
		{"wrong key", "Bearer " + forged.Token, OutcomeVerificationFailed},
		{"tampered", "Bearer " + tampered, OutcomeVerificationFailed},
		{"unknown subject", "Bearer " + f.token(t, "ghost@example.com"), OutcomeResolutionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := gateOutcome(t, tc.outcome)
			req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if p, ok := f.serve(req); ok {
				t.Fatalf("expected anonymous request, got %+v", p)
			}
			if got := gateOutcome(t, tc.outcome); got != before+1 {
				t.Fatalf("%s outcome = %v, want %v", tc.outcome, got, before+1)
			}
		})
	}
}

func TestGateBearerSchemeIsCaseInsensitive(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.Header.Set("Authorization", "bearer "+f.token(t, "alice@example.com"))
	if _, ok := f.serve(req); !ok {
		t.Fatal("expected lower-case scheme to be accepted")
	}
}

func TestGateKeepsExistingPrincipal(t *testing.T) {
	f := newGateFixture(t)

	req := bearerRequest(http.MethodGet, "/api/contacts", f.token(t, "alice@example.com"))
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), auth.NewPrincipal(f.bob)))
	p, ok := f.serve(req)
	if !ok || p.UserID != f.bob.ID {
		t.Fatalf("expected the first bound principal to win, got %+v", p)
	}
}

type failingResolver struct{}

func (failingResolver) Principal(context.Context, string) (auth.Principal, error) {
	return auth.Principal{}, errors.New("connection refused")
}

func TestGateTreatsStoreFailureAsAnonymous(t *testing.T) {
	f := newGateFixture(t)
	f.gate = NewGate(f.codec, failingResolver{}, nil)

	if _, ok := f.serve(bearerRequest(http.MethodGet, "/api/contacts", f.token(t, "alice@example.com"))); ok {
		t.Fatal("expected anonymous request when the user store fails")
	}
}

func TestGateConcurrentRequestsKeepTheirOwnPrincipal(t *testing.T) {
	f := newGateFixture(t)
	tokens := map[string]string{
		f.alice.ID: f.token(t, "alice@example.com"),
		f.bob.ID:   f.token(t, "+15550100"),
	}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		want := f.alice.ID
		if i%2 == 1 {
			want = f.bob.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, ok := f.serve(bearerRequest(http.MethodGet, "/api/contacts", tokens[want]))
			if !ok || p.UserID != want {
				errs <- fmt.Errorf("want %s, got %+v", want, p)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer    ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := extractBearerToken(tc.header)
		if token != tc.token || ok != tc.ok {
			t.Fatalf("extractBearerToken(%q) = %q, %v; want %q, %v", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}
