package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/config"
)

func TestRateLimitReturns429OnDocumentRoutes(t *testing.T) {
	handler := NewRouter(config.Config{
		APIRateLimitRPS:   1,
		APIRateLimitBurst: 1,
	}, ingestSuccessFake{}, processorFake{}, docsErrFake{}).Handler()

	req1 := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestTrafficGateBoundsInFlightPipelineRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)
	var rejected []string

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusOK)
	})
	gate := newTrafficGate(0, 0, 1, 20*time.Millisecond, func(reason string) { rejected = append(rejected, reason) })
	handler := gate.bound(slow)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/documents/process", nil))
		done <- res.Code
	}()
	<-started

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/documents/process", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the only slot is taken, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After on 503")
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message, got %v", body)
	}

	close(release)
	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Fatalf("first request expected 200, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for first request")
	}
	if len(rejected) != 1 || rejected[0] != "saturated" {
		t.Fatalf("unexpected rejections: %v", rejected)
	}
}

func TestTrafficGateDisabledPassesThrough(t *testing.T) {
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	gate := newTrafficGate(0, 0, 0, 0, nil)
	for i := 0; i < 3; i++ {
		res := httptest.NewRecorder()
		gate.limit(gate.bound(base)).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil))
		if res.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, res.Code)
		}
	}
}

func TestRateLimitLeavesHealthzAlone(t *testing.T) {
	handler := NewRouter(config.Config{APIRateLimitRPS: 1, APIRateLimitBurst: 1}, ingestSuccessFake{}, processorFake{}, docsErrFake{}).Handler()
	for i := 0; i < 3; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("healthz %d: expected 200, got %d", i, res.Code)
		}
	}
}
