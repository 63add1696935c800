package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/happyhour"
	"gooeytea/backend/internal/store"
	"gooeytea/backend/internal/variant"
)

var tracer = otel.Tracer("gooeytea/service")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// OrderPublisher receives every committed order. Publishing must not block.
type OrderPublisher interface {
	PublishOrder(event domain.OrderCommitted)
}

type Options struct {
	Location           *time.Location
	OpenHour           int
	// TaxRate defaults to 8.25% only when nil; a zero rate is kept.
	TaxRate            *decimal.Decimal
	AllowNegativeStock bool
	Clock              func() time.Time
	Logger             *logrus.Logger
	Publisher          OrderPublisher
}

type Service struct {
	repo               store.Repository
	resolver           *variant.Resolver
	loc                *time.Location
	openHour           int
	taxRate            decimal.Decimal
	allowNegativeStock bool
	clock              func() time.Time
	log                *logrus.Entry
	publisher          OrderPublisher
	validate           *validator.Validate
}

func New(repo store.Repository, resolver *variant.Resolver, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.FixedZone("store", -6*60*60)
	}
	if opts.OpenHour < 0 || opts.OpenHour > 23 {
		opts.OpenHour = 8
	}
	taxRate := decimal.RequireFromString("0.0825")
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if resolver == nil {
		resolver = variant.NewResolver(repo, nil, nil, 0, opts.Logger)
	}

	return &Service{
		repo:               repo,
		resolver:           resolver,
		loc:                opts.Location,
		openHour:           opts.OpenHour,
		taxRate:            taxRate,
		allowNegativeStock: opts.AllowNegativeStock,
		clock:              opts.Clock,
		log:                opts.Logger.WithField("component", "service"),
		publisher:          opts.Publisher,
		validate:           newValidator(),
	}
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError is returned before any write when a request is malformed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalidField(field string, rule string, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule, Message: message}}}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := happyhour.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		out.Fields = append(out.Fields, FieldError{
			Field:   field,
			Rule:    fe.Tag(),
			Message: describe(field, fe),
		})
	}
	return out
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
	case "clock":
		return fmt.Sprintf("%s must be a 24-hour HH:MM time", field)
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}

func (s *Service) now() time.Time {
	return s.clock()
}

// BusinessDay returns the store-local date label for t and its [start, end)
// bounds. The store offset is fixed, so every business day is 24h long.
func (s *Service) BusinessDay(t time.Time) (string, time.Time, time.Time) {
	local := t.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start.Format(time.DateOnly), start, start.Add(24 * time.Hour)
}

func (s *Service) logAudit(ctx context.Context, action string, fields logrus.Fields) {
	entry := s.log.WithFields(fields).WithField("action", action)
	if actor, ok := ActorFromContext(ctx); ok {
		entry = entry.WithFields(logrus.Fields{"actor": actor.Subject, "role": actor.Role})
	}
	entry.Info("audit")
}
