package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/fulfillment-engine/pkg/config"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReadyReportsFailedDependencies(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	deps := map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}

	resp := httptest.NewRecorder()
	HealthReady(cfg, deps, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Details struct {
				Failed []string `json:"failed"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Error.Details.Failed) != 1 || envelope.Error.Details.Failed[0] != "redis" {
		t.Fatalf("unexpected failed list %v", envelope.Error.Details.Failed)
	}
}

func TestHealthReadySkipsNilDependencies(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	deps := map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	}

	resp := httptest.NewRecorder()
	HealthReady(cfg, deps, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Fulfillment-Env") != "test" {
		t.Fatalf("expected env header")
	}
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg)(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
