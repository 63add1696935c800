package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"gooeytea/backend/internal/service"
	"gooeytea/backend/internal/store/memory"
)

func requestEntries(hook *logtest.Hook) []*logrus.Entry {
	out := make([]*logrus.Entry, 0, 2)
	for _, entry := range hook.AllEntries() {
		if entry.Message == "request" {
			out = append(out, entry)
		}
	}
	return out
}

func TestRequestLogCarriesTraceID(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	svc := service.New(memory.NewSeeded(), nil, service.Options{Location: storeZone, Logger: logger})
	api := New(svc, NewAuthManager(testSecret, time.Hour), nil, "http://127.0.0.1:3000", logger)

	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	api.tracer = provider.Tracer("gooeytea/httpapi")

	for i := 0; i < 2; i++ {
		if rec := doRequest(api, http.MethodGet, "/healthz", nil, ""); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}

	entries := requestEntries(hook)
	if len(entries) != 2 {
		t.Fatalf("expected 2 access log lines, got %d", len(entries))
	}
	seen := map[string]bool{}
	for _, entry := range entries {
		traceID, _ := entry.Data["trace_id"].(string)
		if len(traceID) != 32 || traceID == strings.Repeat("0", 32) {
			t.Fatalf("expected a trace id on the access log, got %q", traceID)
		}
		if entry.Data["status"] != http.StatusOK {
			t.Fatalf("expected status 200 on the access log, got %v", entry.Data["status"])
		}
		seen[traceID] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected each request to get its own trace id, got %v", seen)
	}
}
