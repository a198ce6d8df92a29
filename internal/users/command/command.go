// Package command defines the closed set of user lifecycle commands and
// the dispatcher that routes them to the orchestrator. The variant set is
// sealed by the unexported marker method; matching is an exhaustive type
// switch, not a registry, so two dispatches with identical input and
// state behave identically.
package command

import (
	"context"

	"registrar/internal/users/models"
	"registrar/internal/users/service"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// ErrUnregisteredVariant guards the default arm of the dispatch switch.
// Reaching it means a new variant was added without a dispatch arm.
var ErrUnregisteredVariant = dErrors.New(dErrors.CodeInternal, "unregistered command variant")

// Command is the sealed variant interface.
type Command interface {
	isCommand()
}

// CreateUser provisions a user through the admin path.
type CreateUser struct {
	Input service.CreateInput
}

// RegisterUser provisions a user through the self-service path; the
// orchestrator forces the Regular role.
type RegisterUser struct {
	Input service.CreateInput
}

// UpdateUser applies a partial field set to an arbitrary subject.
type UpdateUser struct {
	SubjectID id.SubjectID
	Fields    models.UpdateFields
}

// UpdateCurrentUser applies a partial field set to the caller's own row.
type UpdateCurrentUser struct {
	Fields models.UpdateFields
}

// DeleteUser runs the delete sequence for a subject.
type DeleteUser struct {
	SubjectID id.SubjectID
}

func (CreateUser) isCommand()        {}
func (RegisterUser) isCommand()      {}
func (UpdateUser) isCommand()        {}
func (UpdateCurrentUser) isCommand() {}
func (DeleteUser) isCommand()        {}

// Orchestrator is the slice of the user service the dispatcher consumes.
type Orchestrator interface {
	Create(ctx context.Context, in service.CreateInput) (*models.User, error)
	Register(ctx context.Context, in service.CreateInput) (*models.User, error)
	Update(ctx context.Context, subjectID id.SubjectID, fields models.UpdateFields) (*models.User, error)
	UpdateCurrent(ctx context.Context, fields models.UpdateFields) (*models.User, error)
	Delete(ctx context.Context, subjectID id.SubjectID) error
}

// Dispatcher routes commands to the orchestrator. It holds no state of
// its own.
type Dispatcher struct {
	users Orchestrator
}

func NewDispatcher(users Orchestrator) *Dispatcher {
	return &Dispatcher{users: users}
}

// Dispatch matches the variant exhaustively. Delete returns a nil user on
// success.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (*models.User, error) {
	switch c := cmd.(type) {
	case CreateUser:
		return d.users.Create(ctx, c.Input)
	case RegisterUser:
		return d.users.Register(ctx, c.Input)
	case UpdateUser:
		return d.users.Update(ctx, c.SubjectID, c.Fields)
	case UpdateCurrentUser:
		return d.users.UpdateCurrent(ctx, c.Fields)
	case DeleteUser:
		return nil, d.users.Delete(ctx, c.SubjectID)
	default:
		return nil, ErrUnregisteredVariant
	}
}
