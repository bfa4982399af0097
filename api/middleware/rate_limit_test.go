package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/fulfillment-engine/pkg/auth"
	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/google/uuid"
)

type fakeRateStore struct {
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: make(map[string]int64)}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func claimRequest(userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delivery/orders/x/claim", nil)
	return req.WithContext(WithPrincipal(req.Context(), auth.Principal{UserID: userID, Role: enums.RoleDelivery}))
}

func TestClaimRateLimitBlocksAfterLimit(t *testing.T) {
	store := newFakeRateStore()
	cfg := config.RateLimitConfig{ClaimWindow: time.Minute, ClaimLimit: 2}
	handler := ClaimRateLimit(store, cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	agent := uuid.New()
	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, claimRequest(agent))
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i+1, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, claimRequest(agent))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60 got %q", resp.Header().Get("Retry-After"))
	}

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, claimRequest(uuid.New()))
	if other.Code != http.StatusOK {
		t.Fatalf("expected other agent to pass got %d", other.Code)
	}
}

func TestClaimRateLimitFailsOpen(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	cfg := config.RateLimitConfig{ClaimWindow: time.Minute, ClaimLimit: 1}
	handler := ClaimRateLimit(store, cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, claimRequest(uuid.New()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
