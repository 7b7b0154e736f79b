package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/config"
	"github.com/edubridge-labs/tokenvault/internal/token"
)

func newBridgeFixture(t *testing.T, remoteURL string) (*BridgedAuthority, *LifecycleService) {
	t.Helper()

	db := newTestDB(t)
	lifecycle := NewLifecycleService(db, testTokenConfig())
	resolution := NewResolutionService(lifecycle.Store(), lifecycle.Codec(), nil)
	local := NewLocalAuthority(lifecycle, resolution)

	remote := NewRemoteClient(&config.AuthorityConfig{
		BaseURL:              remoteURL,
		APIKey:               "key-id.secret",
		TimeoutSeconds:       1,
		HealthTimeoutSeconds: 1,
	})
	return NewBridgedAuthority(remote, local), lifecycle
}

func TestBridge_RemoteGenerate(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		if r.URL.Path != "/api/v1/tokens/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(remoteTokenResponse{
			Value:      "STU_REMOTE22_44",
			Type:       token.TypeStudent,
			EntityID:   42,
			EntityType: "STUDENT",
			SchoolYear: "2025-2026",
			Status:     "ACTIVE",
		})
	}))
	defer server.Close()

	bridge, lifecycle := newBridgeFixture(t, server.URL)

	tok, err := bridge.Generate(context.Background(), token.TypeStudent, 42, nil, "importer")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if tok.Value != "STU_REMOTE22_44" {
		t.Errorf("value = %s, expected the remote-minted token", tok.Value)
	}
	if gotKey != "key-id.secret" {
		t.Errorf("X-Api-Key = %q, expected the configured key", gotKey)
	}

	// The remote owns the row; nothing may be persisted locally.
	if _, err := lifecycle.Store().FindByValue(tok.Value); err == nil {
		t.Error("remote-minted token must not be written to the local store")
	}
}

func TestBridge_FallbackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	bridge, lifecycle := newBridgeFixture(t, server.URL)

	tok, err := bridge.Generate(context.Background(), token.TypeStudent, 42, nil, "importer")
	if err != nil {
		t.Fatalf("Generate should fall back, got %v", err)
	}

	stored, err := lifecycle.Store().FindByValue(tok.Value)
	if err != nil {
		t.Fatalf("fallback token should be persisted locally: %v", err)
	}
	if stored.EntityID != 42 {
		t.Errorf("EntityID = %d, expected 42", stored.EntityID)
	}
}

func TestBridge_FallbackOnUnreachableRemote(t *testing.T) {
	// Nothing listens here; the dial fails fast.
	bridge, _ := newBridgeFixture(t, "http://127.0.0.1:1")

	tok, err := bridge.Generate(context.Background(), token.TypeStudent, 42, nil, "importer")
	if err != nil {
		t.Fatalf("Generate should fall back when the remote is unreachable, got %v", err)
	}
	if tok.Value == "" {
		t.Error("fallback should mint a local token")
	}
}

func TestBridge_FallbackOnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer server.Close()

	bridge, _ := newBridgeFixture(t, server.URL)

	start := time.Now()
	_, err := bridge.Generate(context.Background(), token.TypeStudent, 42, nil, "importer")
	if err != nil {
		t.Fatalf("Generate should fall back after the timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2500*time.Millisecond {
		t.Errorf("fallback took %v, expected roughly the 1s client timeout", elapsed)
	}
}

func TestBridge_RemoteResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tokens/resolve" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(remoteResolveResponse{
			EntityID:   42,
			EntityType: "STUDENT",
			TokenType:  token.TypeStudent,
			SchoolYear: "2025-2026",
		})
	}))
	defer server.Close()

	bridge, _ := newBridgeFixture(t, server.URL)

	r, err := bridge.Resolve(context.Background(), "STU_ABCDEFGH_22", token.TypeStudent)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.EntityID != 42 {
		t.Errorf("EntityID = %d, expected 42", r.EntityID)
	}
}

func TestBridge_ResolveFallsBackToLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	bridge, lifecycle := newBridgeFixture(t, server.URL)
	tok, _ := lifecycle.GenerateToken(token.TypeStudent, 42, nil, "importer")

	r, err := bridge.Resolve(context.Background(), tok.Value, token.TypeStudent)
	if err != nil {
		t.Fatalf("Resolve should fall back to the local engine, got %v", err)
	}
	if r.EntityID != 42 {
		t.Errorf("EntityID = %d, expected 42", r.EntityID)
	}
}

func TestBridge_Available(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer healthy.Close()

	bridge, _ := newBridgeFixture(t, healthy.URL)
	if !bridge.Available(context.Background()) {
		t.Error("Available should report true for a healthy remote")
	}

	down, _ := newBridgeFixture(t, "http://127.0.0.1:1")
	if down.Available(context.Background()) {
		t.Error("Available should report false for an unreachable remote")
	}
}

func TestLocalAuthority_AlwaysAvailable(t *testing.T) {
	db := newTestDB(t)
	lifecycle := NewLifecycleService(db, testTokenConfig())
	resolution := NewResolutionService(lifecycle.Store(), lifecycle.Codec(), nil)
	local := NewLocalAuthority(lifecycle, resolution)

	if !local.Available(context.Background()) {
		t.Error("the local engine is always available")
	}
	if local.Mode() != "local" {
		t.Errorf("Mode() = %q, expected local", local.Mode())
	}
}
