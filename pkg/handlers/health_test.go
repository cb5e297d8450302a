package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
	"github.com/ekaya-inc/genbi-engine/pkg/services/workqueue"
)

func testConfig() *config.Config {
	cfg := &config.Config{Version: "test-version"}
	cfg.Server.Env = "test"
	cfg.Server.BasePath = "/api/v1"
	return cfg
}

func TestHealthHandler_Health_WithoutQueue(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
	if response.Queue != nil {
		t.Error("expected nil queue stats when no queue provided")
	}
}

func TestHealthHandler_Health_WithQueue(t *testing.T) {
	stats := staticQueueStats(workqueue.Stats{Pending: 3, RunningLLM: 1, RunningData: 2})
	handler := NewHealthHandler(testConfig(), stats, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Queue == nil {
		t.Fatal("expected queue stats")
	}
	if response.Queue.Pending != 3 || response.Queue.RunningLLM != 1 || response.Queue.RunningData != 2 {
		t.Errorf("unexpected queue stats: %+v", *response.Queue)
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	handler.Ping(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response PingResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
	if response.Version != "test-version" {
		t.Errorf("expected version 'test-version', got '%s'", response.Version)
	}
	if response.Service != "genbi-engine" {
		t.Errorf("expected service 'genbi-engine', got '%s'", response.Service)
	}
	if response.Environment != "test" {
		t.Errorf("expected environment 'test', got '%s'", response.Environment)
	}
	if response.GoVersion == "" {
		t.Error("expected non-empty go_version")
	}
}
