package health_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/outloud-dev/outloud/internal/health"
)

func TestRun_CollectsAllOutcomes(t *testing.T) {
	t.Parallel()
	boom := errors.New("no key")
	report := health.Run(context.Background(), []health.Checker{
		{Name: "say", Check: func(context.Context) error { return nil }},
		{Name: "elevenlabs", Check: func(context.Context) error { return boom }},
	})

	if report["say"] != nil {
		t.Errorf("say should pass, got %v", report["say"])
	}
	if !errors.Is(report["elevenlabs"], boom) {
		t.Errorf("elevenlabs should fail with probe error, got %v", report["elevenlabs"])
	}
	if report.Ready() {
		t.Error("report with a failing check must not be ready")
	}
}

func TestRun_EmptyCheckerList(t *testing.T) {
	t.Parallel()
	report := health.Run(context.Background(), nil)
	if len(report) != 0 || !report.Ready() {
		t.Errorf("empty checker list should yield an empty, ready report: %v", report)
	}
}

func TestHandler_Readyz(t *testing.T) {
	t.Parallel()
	h := health.NewHandler(
		health.Checker{Name: "say", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"say":"ok"`) {
		t.Errorf("body should report say ok, got %s", rec.Body.String())
	}
}

func TestHandler_ReadyzFailure(t *testing.T) {
	t.Parallel()
	h := health.NewHandler(
		health.Checker{Name: "openai", Check: func(context.Context) error { return errors.New("401") }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
