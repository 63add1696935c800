package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/feed"
	"gooeytea/backend/internal/report"
	"gooeytea/backend/internal/service"
	"gooeytea/backend/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type API struct {
	service       *service.Service
	auth          *AuthManager
	hub           *feed.Hub
	allowedOrigin string
	log           *logrus.Entry
	tracer        trace.Tracer
}

// New wires the HTTP surface. hub may be nil, in which case the order feed
// endpoint answers 503.
func New(svc *service.Service, auth *AuthManager, hub *feed.Hub, allowedOrigin string, logger *logrus.Logger) *API {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &API{
		service:       svc,
		auth:          auth,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		log:           logger.WithField("component", "httpapi"),
		tracer:        otel.Tracer("gooeytea/httpapi"),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.Get("/healthz", a.handleHealth)

	// kiosk and register
	r.Get("/drinks/resolve", a.handleResolveDrink)
	r.Post("/orders", a.handleCreateOrder)
	r.Get("/happy-hour", a.handleGetHappyHour)
	r.Get("/menu/seasonal", a.handleSeasonalMenu)
	r.Get("/ws/orders", a.handleOrderFeed)

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth(domain.RoleManager))

		r.Put("/happy-hour", a.handleUpdateHappyHour)
		r.Get("/reports/general", a.handleGeneralReport)
		r.Get("/reports/x", a.handleXReport)
		r.Get("/reports/z", a.handleZReport)
		r.Get("/order-history/drink-usage", a.handleDrinkUsage)
		r.Get("/order-history/ingredient-usage", a.handleIngredientUsage)
		r.Get("/order-history/recent", a.handleRecentOrders)
		r.Get("/order-history/date-range", a.handleOrdersInRange)
		r.Get("/order-history/employee-sales", a.handleEmployeeSales)
	})

	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}

			token := strings.TrimSpace(authorization[len("Bearer "):])
			actor, err := a.auth.ParseToken(token)
			if err != nil {
				a.writeError(w, http.StatusUnauthorized, err)
				return
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}
			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleResolveDrink(w http.ResponseWriter, r *http.Request) {
	req, err := parseResolveQuery(r)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	resp, err := a.service.ResolveDrink(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.PlaceOrder(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetHappyHour(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.HappyHourStatus(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.writeError(w, http.StatusNotFound, errors.New("happy hour is not configured"))
			return
		}
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleUpdateHappyHour(w http.ResponseWriter, r *http.Request) {
	var req domain.HappyHourUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.UpdateHappyHour(r.Context(), req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleSeasonalMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := a.service.SeasonalMenu(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

func (a *API) handleGeneralReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g, err := a.service.GeneralReport(r.Context(), domain.GeneralReportRequest{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		StartTime: q.Get("startTime"),
		EndTime:   q.Get("endTime"),
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) && len(verr.Fields) > 0 {
			writeText(w, http.StatusBadRequest, verr.Fields[0].Message)
			return
		}
		a.writeServiceError(w, err)
		return
	}

	if strings.EqualFold(q.Get("format"), "xlsx") {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", workbookName(g)))
		if err := report.WriteGeneralWorkbook(w, g); err != nil {
			a.log.WithError(err).Error("write general report workbook")
		}
		return
	}
	writeText(w, http.StatusOK, g.Text())
}

func workbookName(g report.General) string {
	if g.Peak {
		return "peak-" + g.StartDate + ".xlsx"
	}
	return "orders-" + g.StartDate + "-" + g.EndDate + ".xlsx"
}

func (a *API) handleXReport(w http.ResponseWriter, r *http.Request) {
	x, err := a.service.XReport(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, x)
}

func (a *API) handleZReport(w http.ResponseWriter, r *http.Request) {
	z, err := a.service.ZReport(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeText(w, http.StatusOK, z.Text())
}

func (a *API) handleDrinkUsage(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.DrinkUsage(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (a *API) handleIngredientUsage(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.IngredientUsage(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// handleRecentOrders treats a missing or unparsable limit as the default.
func (a *API) handleRecentOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	rows, err := a.service.RecentOrders(r.Context(), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (a *API) handleOrdersInRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := a.service.OrdersInRange(r.Context(), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (a *API) handleEmployeeSales(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.EmployeeSales(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (a *API) handleOrderFeed(w http.ResponseWriter, r *http.Request) {
	if a.hub == nil {
		a.writeError(w, http.StatusServiceUnavailable, errors.New("order feed is disabled"))
		return
	}
	feed.ServeWS(a.hub, a.auth, w, r)
}

// parseResolveQuery maps the resolve query string onto a request. Every
// malformed parameter is reported, not just the first.
func parseResolveQuery(r *http.Request) (domain.ResolveDrinkRequest, error) {
	q := r.URL.Query()
	verr := &service.ValidationError{}
	req := domain.ResolveDrinkRequest{Size: domain.Size(strings.TrimSpace(q.Get("size")))}

	req.TeaID = queryInt(q.Get("teaId"), "teaId", verr)
	req.Sugar = queryInt(q.Get("sugar"), "sugar", verr)
	req.Ice = queryInt(q.Get("ice"), "ice", verr)
	req.FlavorIDs = queryIDList(q.Get("flavorIds"), "flavorIds", verr)
	req.ToppingIDs = queryIDList(q.Get("toppingIds"), "toppingIds", verr)

	if len(verr.Fields) > 0 {
		return domain.ResolveDrinkRequest{}, verr
	}
	return req, nil
}

func queryInt(raw string, field string, verr *service.ValidationError) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Fields = append(verr.Fields, service.FieldError{Field: field, Rule: "required", Message: field + " is required"})
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Fields = append(verr.Fields, service.FieldError{Field: field, Rule: "int", Message: field + " must be an integer"})
		return 0
	}
	return n
}

// queryIDList parses "21,22,,23". Empty tokens are skipped; anything else
// that is not an integer is rejected.
func queryIDList(raw string, field string, verr *service.ValidationError) []int {
	ids := make([]int, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			verr.Fields = append(verr.Fields, service.FieldError{Field: field, Rule: "int", Message: fmt.Sprintf("%s contains non-integer %q", field, part)})
			return nil
		}
		ids = append(ids, n)
	}
	return ids
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		span.SetAttributes(attribute.String("http.method", r.Method), attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		fields := logrus.Fields{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": time.Since(startedAt).Milliseconds(),
		}
		if sc := span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		a.log.WithFields(fields).Info("request")
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// writeServiceError maps service and store errors onto status codes.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, store.ErrInvalidTransaction),
		errors.Is(err, store.ErrUnknownDrink),
		errors.Is(err, store.ErrUnknownIngredient):
		a.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrInsufficientStock):
		a.writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err)
	default:
		a.writeError(w, http.StatusInternalServerError, err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry driver or SQL detail.
	msg := err.Error()
	if status >= 500 {
		a.log.WithError(err).WithField("status", status).Error("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
