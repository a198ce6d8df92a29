package audit

import (
	"context"
	"time"

	id "registrar/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	SubjectID id.SubjectID
	TenantID  id.TenantID
	Action    string
	Outcome   string
	Reason    string
	// Email is recorded when the subject row no longer exists
	// (e.g. partial creates) so the trail stays traceable.
	Email     string
	RequestID string
	// ActorID tracks who performed the action when different from the
	// subject. Used for admin operations on another user's record.
	ActorID string
}

type AuditEvent string

const (
	EventUserCreated       AuditEvent = "user_created"
	EventUserRegistered    AuditEvent = "user_registered"
	EventUserUpdated       AuditEvent = "user_updated"
	EventUserDeleted       AuditEvent = "user_deleted"
	EventUserCreatePartial AuditEvent = "user_create_partial"
	EventUserDeletePartial AuditEvent = "user_delete_partial"
	EventUserMirrorLagged  AuditEvent = "user_mirror_lagged"
)

// Outcomes attached to provisioning events.
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeLagged    = "lagged"
)

// Store persists audit events and serves the trail queries.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error)
}

// Sink receives a copy of every emitted event for external delivery.
// Sinks are best-effort; failures must not block domain logic.
type Sink interface {
	Forward(ctx context.Context, event Event) error
}
