package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gooeytea/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	res := doRequest(api, http.MethodGet, "/healthz", nil, "")

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
	if got := res.Header().Get("X-Request-Id"); got != "" {
		t.Fatalf("request id must not leak into response headers, got %q", got)
	}
}

func TestCORSAllowsConfiguredOriginOnly(t *testing.T) {
	api := newTestAPI(t)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, req)
		return rec
	}

	if got := preflight("http://127.0.0.1:3000").Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:3000" {
		t.Fatalf("expected configured origin to be allowed, got %q", got)
	}
	if got := preflight("https://evil.example").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected foreign origin to be refused, got %q", got)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("1", (1<<20)+1024)
	body := fmt.Sprintf(`{"employeeId":%s,"items":[]}`, veryLong)

	res := doRequest(api, http.MethodPost, "/orders", []byte(body), "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestRequireAuthRejectsMalformedHeaders(t *testing.T) {
	api := newTestAPI(t)
	token := bearer(t, api, domain.RoleManager)

	cases := map[string]string{
		"no scheme":   strings.TrimPrefix(token, "Bearer "),
		"basic":       "Basic dXNlcjpwYXNz",
		"garbage jwt": "Bearer not.a.jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			res := doRequest(api, http.MethodGet, "/reports/x", nil, header)
			if res.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", res.Code)
			}
		})
	}

	if res := doRequest(api, http.MethodGet, "/reports/x", nil, "bearer "+strings.TrimPrefix(token, "Bearer ")); res.Code != http.StatusOK {
		t.Fatalf("expected lower-case scheme to be accepted, got %d", res.Code)
	}
}

func TestInternalErrorsHideDetail(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()

	api.writeServiceError(rec, fmt.Errorf("select orders: %w", fmt.Errorf("pq: relation \"orders\" does not exist")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "relation") {
		t.Fatalf("expected driver detail to be hidden, got %s", rec.Body.String())
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	api := newTestAPI(t)
	if res := doRequest(api, http.MethodGet, "/nope", nil, ""); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if res := doRequest(api, http.MethodDelete, "/orders", nil, ""); res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
