package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"rolodex.dev/internal/auth"
	"rolodex.dev/internal/config"
	"rolodex.dev/internal/contacts"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	codec, err := auth.NewCodec([]byte("handlers-test-secret-0123456789"), time.Hour)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	contactSvc := contacts.NewService(contacts.NewInMemory())
	accounts, err := auth.NewService(auth.NewInMemoryUsers(), codec, auth.WithPurger(contactSvc))
	if err != nil {
		t.Fatalf("new account service: %v", err)
	}
	api, err := New(Options{
		Accounts:  accounts,
		Contacts:  contactSvc,
		Verifier:  codec,
		Resolver:  accounts.Resolver(),
		DevMode:   true,
		RateLimit: config.RateLimitConfig{Burst: 1000, PerSecond: 1000},
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("new api: %v", err)
	}

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, token string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, token)
}

// signup registers a user and logs in with username, returning the token.
func (c *apiClient) signup(register map[string]any, username string) string {
	c.t.Helper()
	register["password"] = "s3cret-pass"
	resp := c.do(http.MethodPost, "/api/auth/register", register, "")
	expectStatus(c.t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/api/auth/login", map[string]any{
		"username": username,
		"password": "s3cret-pass",
	}, "")
	expectStatus(c.t, resp, http.StatusOK)
	payload := decode[loginResponse](c.t, resp)
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body bytes.Buffer
		_, _ = body.ReadFrom(resp.Body)
		resp.Body.Close()
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body.String())
	}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIOwnershipFlow(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup(map[string]any{"email": "alice@example.com", "firstName": "Alice"}, "alice@example.com")
	bob := api.signup(map[string]any{"phoneNumber": "+15550100", "firstName": "Bob"}, "+15550100")

	resp := api.do(http.MethodPost, "/api/contacts", map[string]any{
		"firstName":      "Carol",
		"lastName":       "Jones",
		"emailAddresses": []map[string]any{{"email": "carol@example.com", "label": "work"}},
		"tags":           []string{"friends"},
	}, alice)
	expectStatus(t, resp, http.StatusCreated)
	created := decode[contacts.Contact](t, resp)
	if created.ID == "" || len(created.EmailAddresses) != 1 {
		t.Fatalf("unexpected contact: %+v", created)
	}
	contactPath := "/api/contacts/" + created.ID

	// alice reads her own contact
	resp = api.get(contactPath, nil, alice)
	expectStatus(t, resp, http.StatusOK)
	got := decode[map[string]any](t, resp)
	if got["firstName"] != "Carol" {
		t.Fatalf("unexpected contact body: %v", got)
	}
	if _, leaked := got["ownerId"]; leaked {
		t.Fatalf("owner id must not be serialized: %v", got)
	}

	// bob is denied every guarded operation on it
	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, contactPath, nil},
		{http.MethodPut, contactPath, map[string]any{"firstName": "Mallory"}},
		{http.MethodPatch, contactPath + "/favorite", nil},
		{http.MethodDelete, contactPath, nil},
	} {
		resp = api.do(tc.method, tc.path, tc.body, bob)
		expectStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	}

	// bob's listing does not include it
	resp = api.get("/api/contacts", nil, bob)
	expectStatus(t, resp, http.StatusOK)
	if page := decode[contacts.Page](t, resp); page.TotalElements != 0 {
		t.Fatalf("bob sees %d contacts", page.TotalElements)
	}

	// the contact is untouched
	resp = api.get(contactPath, nil, alice)
	expectStatus(t, resp, http.StatusOK)
	if c := decode[contacts.Contact](t, resp); c.FirstName != "Carol" || c.Favorite {
		t.Fatalf("contact was modified: %+v", c)
	}

	resp = api.do(http.MethodPatch, contactPath+"/favorite", nil, alice)
	expectStatus(t, resp, http.StatusOK)
	if c := decode[contacts.Contact](t, resp); !c.Favorite {
		t.Fatal("expected favorite to toggle on")
	}

	resp = api.do(http.MethodDelete, contactPath, nil, alice)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.get(contactPath, nil, alice)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestAPIRequiresAuthentication(t *testing.T) {
	api := newTestAPI(t)

	for _, tc := range []struct {
		method string
		path   string
		token  string
	}{
		{http.MethodGet, "/api/contacts", ""},
		{http.MethodGet, "/api/contacts", "garbage"},
		{http.MethodGet, "/api/user/profile", ""},
		{http.MethodDelete, "/api/user/account", "garbage"},
	} {
		resp := api.do(tc.method, tc.path, nil, tc.token)
		expectStatus(t, resp, http.StatusUnauthorized)
		if resp.Header.Get("WWW-Authenticate") == "" {
			t.Fatalf("%s %s: expected WWW-Authenticate header", tc.method, tc.path)
		}
		body := decode[map[string]any](t, resp)
		if body["error"] == nil || body["request_id"] == nil {
			t.Fatalf("unexpected error body: %v", body)
		}
	}
}

func TestAPIPublicEndpointsIgnoreGarbageToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodPost, "/api/auth/register", map[string]any{
		"email":    "dana@example.com",
		"password": "s3cret-pass",
	}, "garbage")
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/api/auth/login", map[string]any{
		"username": "dana@example.com",
		"password": "s3cret-pass",
	}, "garbage")
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestAPILoginFailuresAreUniform(t *testing.T) {
	api := newTestAPI(t)
	api.signup(map[string]any{"email": "erin@example.com"}, "erin@example.com")

	var messages []string
	for _, creds := range []map[string]any{
		{"username": "erin@example.com", "password": "wrong-pass"},
		{"username": "nobody@example.com", "password": "s3cret-pass"},
	} {
		resp := api.do(http.MethodPost, "/api/auth/login", creds, "")
		expectStatus(t, resp, http.StatusUnauthorized)
		body := decode[map[string]any](t, resp)
		messages = append(messages, body["error"].(string))
	}
	if messages[0] != messages[1] {
		t.Fatalf("login failures differ: %q vs %q", messages[0], messages[1])
	}
}

func TestAPIRegisterValidation(t *testing.T) {
	api := newTestAPI(t)
	api.signup(map[string]any{"email": "frank@example.com"}, "frank@example.com")

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"short password", map[string]any{"email": "g@example.com", "password": "123"}, http.StatusBadRequest},
		{"bad email", map[string]any{"email": "not-an-email", "password": "s3cret-pass"}, http.StatusBadRequest},
		{"no identifier", map[string]any{"password": "s3cret-pass"}, http.StatusBadRequest},
		{"unknown field", map[string]any{"email": "h@example.com", "password": "s3cret-pass", "role": "admin"}, http.StatusBadRequest},
		{"duplicate email", map[string]any{"email": "FRANK@example.com", "password": "s3cret-pass"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := api.do(http.MethodPost, "/api/auth/register", tc.body, "")
			expectStatus(t, resp, tc.want)
			resp.Body.Close()
		})
	}
}

func TestAPIContactValidationReportsFields(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup(map[string]any{"email": "gina@example.com"}, "gina@example.com")

	resp := api.do(http.MethodPost, "/api/contacts", map[string]any{
		"emailAddresses": []map[string]any{{"email": "nope"}},
	}, token)
	expectStatus(t, resp, http.StatusBadRequest)
	body := decode[map[string]any](t, resp)
	fields, ok := body["fields"].(map[string]any)
	if !ok {
		t.Fatalf("expected fields in body: %v", body)
	}
	if fields["firstName"] != "required" || fields["emailAddresses[0].email"] != "email" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestAPIListSearchAndPaging(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup(map[string]any{"email": "hank@example.com"}, "hank@example.com")

	for _, name := range []string{"Zoe", "adam", "Mia"} {
		resp := api.do(http.MethodPost, "/api/contacts", map[string]any{
			"firstName": name,
			"tags":      []string{"team-" + strings.ToLower(name)},
		}, token)
		expectStatus(t, resp, http.StatusCreated)
		resp.Body.Close()
	}

	resp := api.get("/api/contacts", url.Values{"size": {"2"}}, token)
	expectStatus(t, resp, http.StatusOK)
	page := decode[contacts.Page](t, resp)
	if page.TotalElements != 3 || page.TotalPages != 2 || len(page.Content) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Content[0].FirstName != "adam" || page.Content[1].FirstName != "Mia" {
		t.Fatalf("unexpected order: %s, %s", page.Content[0].FirstName, page.Content[1].FirstName)
	}

	resp = api.get("/api/contacts", url.Values{"page": {"abc"}}, token)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.get("/api/contacts", url.Values{"page": {"922337203685477581"}, "size": {"10"}}, token)
	expectStatus(t, resp, http.StatusOK)
	if far := decode[contacts.Page](t, resp); len(far.Content) != 0 || far.TotalElements != 3 {
		t.Fatalf("unexpected far page: %+v", far)
	}

	resp = api.get("/api/contacts/search", url.Values{"query": {"TEAM-Z"}}, token)
	expectStatus(t, resp, http.StatusOK)
	found := decode[contacts.Page](t, resp)
	if found.TotalElements != 1 || found.Content[0].FirstName != "Zoe" {
		t.Fatalf("unexpected search result: %+v", found)
	}

	resp = api.get("/api/contacts/search", nil, token)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestAPIProfileAndAccountLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.signup(map[string]any{"email": "ivy@example.com", "firstName": "Ivy"}, "ivy@example.com")

	resp := api.get("/api/user/profile", nil, token)
	expectStatus(t, resp, http.StatusOK)
	profile := decode[map[string]any](t, resp)
	if profile["email"] != "ivy@example.com" {
		t.Fatalf("unexpected profile: %v", profile)
	}
	if _, leaked := profile["passwordHash"]; leaked {
		t.Fatal("password hash serialized")
	}

	resp = api.do(http.MethodPut, "/api/user/profile", map[string]any{"lastName": "Stone"}, token)
	expectStatus(t, resp, http.StatusOK)
	if u := decode[auth.User](t, resp); u.LastName != "Stone" || u.FirstName != "Ivy" {
		t.Fatalf("unexpected profile after update: %+v", u)
	}

	resp = api.do(http.MethodPut, "/api/user/change-password", map[string]any{
		"currentPassword": "wrong-pass",
		"newPassword":     "n3w-secret",
	}, token)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = api.do(http.MethodPut, "/api/user/change-password", map[string]any{
		"currentPassword": "s3cret-pass",
		"newPassword":     "n3w-secret",
	}, token)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/api/auth/login", map[string]any{
		"username": "ivy@example.com",
		"password": "n3w-secret",
	}, "")
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/api/contacts", map[string]any{"firstName": "Jack"}, token)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = api.do(http.MethodDelete, "/api/user/account", nil, token)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// the token no longer resolves to anyone
	resp = api.get("/api/contacts", nil, token)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestAPIHealthAndFallbacks(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, "")
	expectStatus(t, resp, http.StatusOK)
	if body := decode[map[string]any](t, resp); body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected health body: %v", body)
	}

	resp = api.get("/readyz", nil, "")
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.get("/nowhere", nil, "")
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/healthz", map[string]any{}, "")
	expectStatus(t, resp, http.StatusMethodNotAllowed)
	resp.Body.Close()

	resp = api.get("/api/contacts", nil, "")
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers, got %v", resp.Header)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID on response")
	}
	resp.Body.Close()
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyReflectsDatabase(t *testing.T) {
	var down bool
	a := &API{ready: Readiness{DB: pingFunc(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected readiness ping to carry a deadline")
		}
		if down {
			return errors.New("connection refused")
		}
		return nil
	})}}

	rr := httptest.NewRecorder()
	a.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 while the database answers, got %d", rr.Code)
	}

	down = true
	rr = httptest.NewRecorder()
	a.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once the database is gone, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestAPIPhoneCannotImpersonateEmail(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodPost, "/api/auth/register", map[string]any{
		"phoneNumber": "victim@example.com",
		"password":    "s3cret-pass",
	}, "")
	expectStatus(t, resp, http.StatusBadRequest)
	body := decode[map[string]any](t, resp)
	if fields, _ := body["fields"].(map[string]any); fields["phoneNumber"] != "phone" {
		t.Fatalf("expected phoneNumber field error, got %v", body)
	}

	mallory := api.signup(map[string]any{"phoneNumber": "+15550100", "firstName": "Mallory"}, "+15550100")
	resp = api.do(http.MethodPut, "/api/user/profile", map[string]any{"phoneNumber": "victim@example.com"}, mallory)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	victim := api.signup(map[string]any{"email": "victim@example.com", "firstName": "Victim"}, "victim@example.com")
	resp = api.do(http.MethodPost, "/api/contacts", map[string]any{"firstName": "Secret"}, victim)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = api.get("/api/user/profile", nil, mallory)
	expectStatus(t, resp, http.StatusOK)
	if u := decode[auth.User](t, resp); u.FirstName != "Mallory" || u.Email != "" {
		t.Fatalf("mallory's token resolved to %+v", u)
	}
	resp = api.get("/api/contacts", nil, mallory)
	expectStatus(t, resp, http.StatusOK)
	if page := decode[contacts.Page](t, resp); page.TotalElements != 0 {
		t.Fatalf("mallory sees %d contacts", page.TotalElements)
	}
}
