// Package service orchestrates the user lifecycle across the principal
// directory and the user record store. No transaction spans the two
// backends; every write is an ordered two-step sequence with named
// outcomes for the partial states.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/users/directory"
	"registrar/internal/users/metrics"
	"registrar/internal/users/models"
	id "registrar/pkg/domain"
	audit "registrar/pkg/platform/audit"
	"registrar/pkg/requestcontext"
)

type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	FindBySubject(ctx context.Context, subjectID id.SubjectID) (*models.User, error)
	Update(ctx context.Context, subjectID id.SubjectID, fields models.UpdateFields) (*models.User, error)
	Delete(ctx context.Context, subjectID id.SubjectID) error
	List(ctx context.Context, filter models.Filter) ([]*models.User, error)
}

type Directory interface {
	CreatePrincipal(ctx context.Context, in directory.CreateInput) (*directory.Principal, error)
	DeletePrincipal(ctx context.Context, subjectID id.SubjectID) error
	UpdateAttributes(ctx context.Context, subjectID id.SubjectID, attrs map[string]string) error
	GetPrincipal(ctx context.Context, subjectID id.SubjectID) (*directory.Principal, error)
	ListPrincipals(ctx context.Context, tenantID id.TenantID) ([]*directory.Principal, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the dual-write protocol and the merged read paths.
type Service struct {
	store          UserStore
	directory      Directory
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(store UserStore, dir Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: dir,
		tracer:    otel.Tracer("registrar.users"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, e audit.Event) {
	e.Action = string(event)
	e.RequestID = requestcontext.RequestID(ctx)
	if claims, ok := requestcontext.Claims(ctx); ok && claims.Subject != string(e.SubjectID) {
		e.ActorID = claims.Subject
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"subject_id", e.SubjectID,
			"tenant_id", e.TenantID,
			"outcome", e.Outcome,
			"request_id", e.RequestID,
			"log_type", "audit",
		)
	}
	if s.auditPublisher != nil {
		_ = s.auditPublisher.Emit(ctx, e)
	}
}
