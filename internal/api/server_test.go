package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/agent"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/destination"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/metrics"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/tools"
)

// memAuthStore is an in-memory auth.Storage for handler tests.
type memAuthStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*auth.User
	byEmail map[string]uuid.UUID
	refresh map[string]*auth.RefreshTokenState
}

func newMemAuthStore() *memAuthStore {
	return &memAuthStore{
		users:   make(map[uuid.UUID]*auth.User),
		byEmail: make(map[string]uuid.UUID),
		refresh: make(map[string]*auth.RefreshTokenState),
	}
}

func (m *memAuthStore) CreateUser(_ context.Context, orgID uuid.UUID, email, passwordHash string, role auth.Role) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[email]; exists {
		return nil, auth.ErrUserExists
	}
	u := &auth.User{
		ID:           uuid.New(),
		OrgID:        orgID,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	m.byEmail[email] = u.ID
	return u, nil
}

func (m *memAuthStore) GetUserByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *memAuthStore) GetUser(_ context.Context, id uuid.UUID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

func (m *memAuthStore) ListUsers(_ context.Context, orgID uuid.UUID) ([]*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auth.User
	for _, u := range m.users {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memAuthStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	delete(m.byEmail, u.Email)
	delete(m.users, id)
	return nil
}

func (m *memAuthStore) SaveRefreshToken(_ context.Context, userID uuid.UUID, jtiHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[jtiHash] = &auth.RefreshTokenState{UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (m *memAuthStore) GetRefreshToken(_ context.Context, jtiHash string) (*auth.RefreshTokenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.refresh[jtiHash]
	if !ok {
		return nil, auth.ErrTokenRevoked
	}
	return st, nil
}

func (m *memAuthStore) RevokeRefreshToken(_ context.Context, jtiHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, jtiHash)
	return nil
}

func (m *memAuthStore) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, st := range m.refresh {
		if st.UserID == userID {
			delete(m.refresh, k)
		}
	}
	return nil
}

// memRunStore is an in-memory agent.RunStorage.
type memRunStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*agent.Run
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: make(map[uuid.UUID]*agent.Run)}
}

func (m *memRunStore) CreateRun(_ context.Context, orgID, userID uuid.UUID, query string) (*agent.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &agent.Run{
		ID:          uuid.New(),
		OrgID:       orgID,
		UserID:      userID,
		Query:       query,
		Status:      agent.RunRunning,
		CurrentStep: "starting",
	}
	m.runs[r.ID] = r
	return r, nil
}

func (m *memRunStore) GetRun(_ context.Context, orgID, id uuid.UUID) (*agent.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.OrgID != orgID {
		return nil, agent.ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRunStore) UpdateProgress(_ context.Context, id uuid.UUID, step string, percent float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		r.CurrentStep = step
		r.Progress = percent
	}
	return nil
}

func (m *memRunStore) CompleteRun(_ context.Context, id uuid.UUID, results *agent.Results) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		r.Status = agent.RunCompleted
		r.Progress = 100
		r.Results = results
	}
	return nil
}

func (m *memRunStore) FailRun(_ context.Context, id uuid.UUID, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		r.Status = agent.RunFailed
		r.Error = runErr.Error()
	}
	return nil
}

// testEnv bundles everything a handler test needs.
type testEnv struct {
	server  *httptest.Server
	tokens  *auth.Manager
	service *auth.Service
	store   *memAuthStore
	metrics *metrics.Collector
	admin   *auth.User
}

func (e *testEnv) tokenFor(t *testing.T, user *auth.User) string {
	t.Helper()
	token, err := e.tokens.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return token
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test adjust the server config before startup, for
// cases like shrinking rate limits.
func newTestEnvWith(t *testing.T, mutate func(*ServerConfig)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	tokens, err := auth.LoadManager(
		filepath.Join(dir, "jwt_private.pem"),
		filepath.Join(dir, "jwt_public.pem"),
		15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("LoadManager: %v", err)
	}

	store := newMemAuthStore()
	hash, err := auth.HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	admin, err := store.CreateUser(context.Background(), uuid.New(), "admin@example.com", hash, auth.RoleAdmin)
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	logger := log.NewNop()
	lockout := auth.NewLockout(5, 5*time.Minute)
	service := auth.NewService(store, tokens, lockout, 7*24*time.Hour, logger)

	collector := metrics.NewCollector()
	reg := tools.NewRegistry(collector, logger)
	reg.Register(tools.FlightsTool{})
	reg.Register(tools.LodgingTool{})
	reg.Register(tools.ActivitiesTool{})
	reg.Register(tools.TransitTool{})
	reg.Register(tools.NewWeatherTool("", true))
	graph := agent.NewGraph(nil, reg, collector, logger)
	runner := agent.NewRunner(context.Background(), graph, newMemRunStore(), collector, logger)

	cfg := ServerConfig{
		Logger:         logger,
		AuthService:    service,
		Tokens:         tokens,
		Destinations:   destination.NewStore(nil),
		KnowledgeStore: knowledge.NewStore(nil),
		Ingestor:       knowledge.NewIngestor(knowledge.NewStore(nil), nil, nil, logger),
		Runner:         runner,
		Metrics:        collector,
		Probes: map[string]Probe{
			"always_ok": func(context.Context) error { return nil },
		},
		IsDev: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:  ts,
		tokens:  tokens,
		service: service,
		store:   store,
		metrics: collector,
		admin:   admin,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestServer_RateLimitKeyedByUser(t *testing.T) {
	env := newTestEnvWith(t, func(cfg *ServerConfig) {
		cfg.APIRatePerMinute = 1
	})
	adminToken := env.tokenFor(t, env.admin)

	hash, err := auth.HashPassword("another good pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	member, err := env.store.CreateUser(context.Background(), env.admin.OrgID, "member@example.com", hash, auth.RoleMember)
	if err != nil {
		t.Fatalf("seed member: %v", err)
	}
	memberToken := env.tokenFor(t, member)

	// Both callers come from the same client IP. Each authenticated user
	// has an independent budget, so the second user is not throttled by
	// the first one's traffic.
	resp := env.do(t, http.MethodGet, "/api/v1/auth/me", adminToken, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first caller status = %d, want 200", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/auth/me", memberToken, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second caller status = %d, want 200", resp.StatusCode)
	}

	// The first caller has spent their own budget.
	resp = env.do(t, http.MethodGet, "/api/v1/auth/me", adminToken, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("exhausted caller status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestServer_RejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/destinations", "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_RejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/auth/me", "not-a-jwt", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_LoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"admin@example.com","password":"correct horse battery"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	pair := decodeBody[auth.TokenPair](t, resp)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("login returned empty tokens")
	}
	if pair.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", pair.TokenType)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/auth/me", pair.AccessToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want 200", resp.StatusCode)
	}
	me := decodeBody[auth.User](t, resp)
	if me.Email != "admin@example.com" {
		t.Errorf("me email = %q", me.Email)
	}
}

func TestServer_LoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"admin@example.com","password":"wrong"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_RefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"admin@example.com","password":"correct horse battery"}`)
	pair := decodeBody[auth.TokenPair](t, resp)

	resp = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		`{"refresh_token":"`+pair.RefreshToken+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	next := decodeBody[auth.TokenPair](t, resp)
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The old refresh token is revoked after rotation.
	resp = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		`{"refresh_token":"`+pair.RefreshToken+`"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused refresh status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_UserManagement(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.tokenFor(t, env.admin)

	resp := env.do(t, http.MethodPost, "/api/v1/users", adminToken,
		`{"email":"member@example.com","password":"another good pass","role":"member"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d, want 201", resp.StatusCode)
	}
	member := decodeBody[auth.User](t, resp)
	if member.Role != auth.RoleMember || member.OrgID != env.admin.OrgID {
		t.Errorf("created user = %+v", member)
	}

	// Members cannot manage users.
	memberToken := env.tokenFor(t, &member)
	resp = env.do(t, http.MethodGet, "/api/v1/users", memberToken, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("member list status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodDelete, "/api/v1/users/"+member.ID.String(), adminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete user status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	// Admins cannot delete themselves.
	resp = env.do(t, http.MethodDelete, "/api/v1/users/"+env.admin.ID.String(), adminToken, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self delete status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_HealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Errorf("/health body = %v", body)
	}

	resp = env.do(t, http.MethodGet, "/healthz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d", resp.StatusCode)
	}
	hz := decodeBody[map[string]any](t, resp)
	if hz["status"] != "healthy" {
		t.Errorf("/healthz = %v", hz)
	}

	resp = env.do(t, http.MethodGet, "/ready", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/ready status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestServer_MetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// Drive one request through the middleware stack first.
	resp := env.do(t, http.MethodGet, "/api/v1/destinations", "", "")
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}
	snap := decodeBody[metrics.Snapshot](t, resp)
	if snap.HTTPRequests == 0 {
		t.Error("http_requests not counted")
	}

	resp = env.do(t, http.MethodGet, "/metrics/prometheus", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics/prometheus status = %d", resp.StatusCode)
	}
	raw := make([]byte, 1<<16)
	n, _ := resp.Body.Read(raw)
	resp.Body.Close()
	text := string(raw[:n])
	if !strings.Contains(text, "advisor_http_requests_total") {
		t.Errorf("prometheus exposition missing request counter:\n%s", text)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("prometheus content type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestServer_AgentRunLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, env.admin)

	resp := env.do(t, http.MethodPost, "/api/v1/agent/run", token,
		`{"message":"Plan a trip to Paris for 3 days under $3,000"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("run status = %d, want 202", resp.StatusCode)
	}
	started := decodeBody[map[string]any](t, resp)
	runID, _ := started["run_id"].(string)
	if runID == "" {
		t.Fatalf("no run_id in %v", started)
	}

	// Poll status until the run completes.
	deadline := time.Now().Add(30 * time.Second)
	var run agent.Run
	for {
		resp = env.do(t, http.MethodGet, "/api/v1/agent/run/"+runID+"/status", token, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status endpoint = %d, want 200", resp.StatusCode)
		}
		run = decodeBody[agent.Run](t, resp)
		if run.Status == agent.RunCompleted || run.Status == agent.RunFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run did not finish, last status %s at %s", run.Status, run.CurrentStep)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if run.Status != agent.RunCompleted {
		t.Fatalf("run status = %s (%s), want completed", run.Status, run.Error)
	}
	if run.Results == nil || run.Results.Itinerary == nil {
		t.Fatal("completed run has no results")
	}
	if run.Results.Itinerary.Destination != "Paris" {
		t.Errorf("itinerary destination = %q, want Paris", run.Results.Itinerary.Destination)
	}

	// The stream endpoint replays the terminal event for a finished run.
	resp = env.do(t, http.MethodGet, "/api/v1/agent/run/"+runID+"/stream", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("stream content type = %q", ct)
	}
	raw := make([]byte, 1<<20)
	n, _ := resp.Body.Read(raw)
	resp.Body.Close()
	if !strings.Contains(string(raw[:n]), "event: done") {
		t.Errorf("stream did not replay done event:\n%s", string(raw[:n]))
	}
}

func TestServer_AgentRunCrossOrgHidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, env.admin)

	resp := env.do(t, http.MethodPost, "/api/v1/agent/run", token, `{"message":"hello"}`)
	started := decodeBody[map[string]any](t, resp)
	runID, _ := started["run_id"].(string)

	outsider := &auth.User{ID: uuid.New(), OrgID: uuid.New(), Role: auth.RoleAdmin}
	resp = env.do(t, http.MethodGet, "/api/v1/agent/run/"+runID+"/status", env.tokenFor(t, outsider), "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-org status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_AgentMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, env.admin)

	for name, body := range map[string]string{
		"empty":    `{"message":"   "}`,
		"too long": `{"message":"` + strings.Repeat("x", maxAgentMessage+1) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v1/agent/run", token, body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

var errProbeDown = errors.New("connection refused")

func TestHealthz_Degraded(t *testing.T) {
	h := healthz(map[string]Probe{
		"db":       func(context.Context) error { return nil },
		"embedder": func(context.Context) error { return errProbeDown },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for degraded", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

func TestHealthz_Unhealthy(t *testing.T) {
	h := healthz(map[string]Probe{
		"db": func(context.Context) error { return errProbeDown },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
