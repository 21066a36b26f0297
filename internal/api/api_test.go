package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/netops-tools/aclpush/internal/api"
	"github.com/netops-tools/aclpush/internal/api/handler"
	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/service"
	"github.com/netops-tools/aclpush/internal/storage/memory"
	"github.com/netops-tools/aclpush/internal/transport"
)

// testServer creates a test server with in-memory storage and the file shim
// standing in for real devices.
type testServer struct {
	handler      http.Handler
	store        *memory.Store
	bootstrapKey string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	bootstrapKey := "test-bootstrap-key"

	dialer := transport.NewFileDialer(t.TempDir())
	rollout := service.NewRollout(store, dialer, nil, service.Options{Fanout: 2})

	return &testServer{
		handler:      api.NewRouter(store, rollout, bootstrapKey),
		store:        store,
		bootstrapKey: bootstrapKey,
	}
}

func (ts *testServer) request(method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func testRules() []domain.RawRule {
	return []domain.RawRule{
		{ACLNumber: 100, Action: "permit", Protocol: "tcp", Source: "10.0.0.0/24", Destination: "10.0.1.0/24", Port: "80"},
		{ACLNumber: 100, Action: "deny", Protocol: "ip", Source: "any", Destination: "any"},
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/health", nil, "")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	// Request without auth header
	rr := ts.request("GET", "/api/v1/runs", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with invalid auth header format
	req := httptest.NewRequest("GET", "/api/v1/runs", nil)
	req.Header.Set("Authorization", "Basic invalid")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with invalid API key
	rr = ts.request("GET", "/api/v1/runs", nil, "invalid-key")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestBootstrapKeyAuth(t *testing.T) {
	ts := newTestServer(t)

	// Bootstrap key should work when no API keys exist
	rr := ts.request("GET", "/api/v1/runs", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bootstrap key, got %d", rr.Code)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	ts := newTestServer(t)

	// Create API key using bootstrap key
	createReq := domain.CreateAPIKeyRequest{Name: "Test Key", Role: domain.RoleAdmin}
	rr := ts.request("POST", "/api/v1/keys", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created domain.APIKey
	_ = json.Unmarshal(rr.Body.Bytes(), &created)
	if created.Key == "" {
		t.Error("Expected key to be returned on creation")
	}
	if created.Name != "Test Key" {
		t.Errorf("Expected name 'Test Key', got '%s'", created.Name)
	}
	if created.Role != domain.RoleAdmin {
		t.Errorf("Expected role admin, got '%s'", created.Role)
	}

	// Use the new API key
	rr = ts.request("GET", "/api/v1/runs", nil, created.Key)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with new API key, got %d", rr.Code)
	}

	// List API keys
	rr = ts.request("GET", "/api/v1/keys", nil, created.Key)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var keys []*domain.APIKey
	_ = json.Unmarshal(rr.Body.Bytes(), &keys)
	if len(keys) != 1 {
		t.Errorf("Expected 1 key, got %d", len(keys))
	}
	if keys[0].Key != "" {
		t.Error("List must not expose key values")
	}

	// Delete API key
	rr = ts.request("DELETE", "/api/v1/keys/"+created.ID, nil, created.Key)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
}

func TestAPIKeyRejectsUnknownRole(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/v1/keys", map[string]string{
		"name": "Bad Key",
		"role": "superuser",
	}, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// Clean ruleset validates and previews commands
	rr := ts.request("POST", "/api/v1/validate", handler.ValidateRequest{Rules: testRules()}, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp handler.ValidateResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if !resp.Valid {
		t.Errorf("Expected valid ruleset, got findings: %+v", resp.Findings)
	}
	if len(resp.Commands) != 2 {
		t.Errorf("Expected 2 preview commands, got %v", resp.Commands)
	}

	// Conflicting ruleset comes back invalid, still a 200
	conflicting := []domain.RawRule{
		{ACLNumber: 100, Action: "permit", Protocol: "tcp", Source: "10.0.0.0/24", Destination: "10.0.1.0/24", Port: "80"},
		{ACLNumber: 100, Action: "deny", Protocol: "tcp", Source: "10.0.0.0/25", Destination: "10.0.1.0/24", Port: "80"},
	}
	rr = ts.request("POST", "/api/v1/validate", handler.ValidateRequest{Rules: conflicting}, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Valid {
		t.Error("Expected conflicting ruleset to be invalid")
	}
	if len(resp.Findings) == 0 {
		t.Error("Expected findings for conflicting ruleset")
	}

	// Malformed rule is a 400
	malformed := []domain.RawRule{
		{ACLNumber: 100, Action: "permit", Protocol: "tcp", Source: "not-an-address", Destination: "any"},
	}
	rr = ts.request("POST", "/api/v1/validate", handler.ValidateRequest{Rules: malformed}, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed rule, got %d", rr.Code)
	}
}

func TestRunLifecycle(t *testing.T) {
	ts := newTestServer(t)

	// Dry run: report comes back, nothing applied
	runReq := handler.CreateRunRequest{
		Devices: []domain.Device{{Host: "sw1", Username: "admin"}},
		Rules:   testRules(),
		Mode:    domain.ModeDryRun,
	}
	rr := ts.request("POST", "/api/v1/runs", runReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var report domain.RunReport
	_ = json.Unmarshal(rr.Body.Bytes(), &report)
	if len(report.Outcomes) != 1 || report.Outcomes[0].Status != domain.StatusDryRun {
		t.Fatalf("Expected one dry_run outcome, got %+v", report.Outcomes)
	}

	// Live apply through the file shim
	runReq.Mode = domain.ModeApply
	rr = ts.request("POST", "/api/v1/runs", runReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &report)
	outcome := report.Outcomes[0]
	if outcome.Status != domain.StatusApplied {
		t.Fatalf("Expected applied, got %s (%s)", outcome.Status, outcome.Error)
	}

	// Fetch the persisted run
	rr = ts.request("GET", "/api/v1/runs/"+report.RunID, nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	var run domain.RunRecord
	_ = json.Unmarshal(rr.Body.Bytes(), &run)
	if run.Status != domain.RunStatusSucceeded {
		t.Errorf("Expected run status succeeded, got %s", run.Status)
	}

	// List runs
	rr = ts.request("GET", "/api/v1/runs", nil, ts.bootstrapKey)
	var runs []*domain.RunRecord
	_ = json.Unmarshal(rr.Body.Bytes(), &runs)
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}

	// The apply left a backup behind
	rr = ts.request("GET", "/api/v1/devices/sw1/backups", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var backups []*domain.Backup
	_ = json.Unmarshal(rr.Body.Bytes(), &backups)
	if len(backups) != 1 {
		t.Fatalf("Expected 1 backup, got %d", len(backups))
	}
	if backups[0].ID != outcome.BackupID {
		t.Errorf("Backup ID mismatch: %s vs outcome %s", backups[0].ID, outcome.BackupID)
	}

	rr = ts.request("GET", "/api/v1/backups/"+outcome.BackupID, nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	// Unknown run is a 404
	rr = ts.request("GET", "/api/v1/runs/nonexistent", nil, ts.bootstrapKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestUserKeyCannotApply(t *testing.T) {
	ts := newTestServer(t)

	// Create a user-role key
	rr := ts.request("POST", "/api/v1/keys", domain.CreateAPIKeyRequest{Name: "Reader"}, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	var created domain.APIKey
	_ = json.Unmarshal(rr.Body.Bytes(), &created)
	if created.Role != domain.RoleUser {
		t.Fatalf("Expected default role user, got %s", created.Role)
	}

	// Live apply with a user key: run completes but every device is rejected
	runReq := handler.CreateRunRequest{
		Devices: []domain.Device{{Host: "sw1", Username: "admin"}},
		Rules:   testRules(),
		Mode:    domain.ModeApply,
	}
	rr = ts.request("POST", "/api/v1/runs", runReq, created.Key)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var report domain.RunReport
	_ = json.Unmarshal(rr.Body.Bytes(), &report)
	if report.Outcomes[0].Status != domain.StatusRejected {
		t.Errorf("Expected rejected outcome, got %s", report.Outcomes[0].Status)
	}

	// Dry run with the same key is allowed
	runReq.Mode = domain.ModeDryRun
	rr = ts.request("POST", "/api/v1/runs", runReq, created.Key)
	_ = json.Unmarshal(rr.Body.Bytes(), &report)
	if report.Outcomes[0].Status != domain.StatusDryRun {
		t.Errorf("Expected dry_run outcome, got %s", report.Outcomes[0].Status)
	}
}

func TestInvalidRunRequests(t *testing.T) {
	ts := newTestServer(t)

	// No devices
	rr := ts.request("POST", "/api/v1/runs", handler.CreateRunRequest{Mode: domain.ModeDryRun}, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	// Unknown mode
	rr = ts.request("POST", "/api/v1/runs", map[string]any{
		"devices": []map[string]string{{"host": "sw1"}},
		"mode":    "simulate",
	}, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown mode, got %d", rr.Code)
	}
}
