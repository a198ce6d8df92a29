// Package query defines the closed set of user read queries and the
// dispatcher that routes them to the orchestrator's read paths.
package query

import (
	"context"

	"registrar/internal/users/models"
	"registrar/internal/users/service"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// ErrUnregisteredVariant guards the default arm of the dispatch switch.
var ErrUnregisteredVariant = dErrors.New(dErrors.CodeInternal, "unregistered query variant")

// Query is the sealed variant interface.
type Query interface {
	isQuery()
}

// GetUser resolves a single subject. An unknown subject yields an empty
// Result, not an error.
type GetUser struct {
	SubjectID id.SubjectID
}

// GetUsers lists users matching the filter, joined with directory flags.
type GetUsers struct {
	Filter models.Filter
}

// GetCurrentUser resolves the caller's own merged view from context
// claims.
type GetCurrentUser struct{}

func (GetUser) isQuery()        {}
func (GetUsers) isQuery()       {}
func (GetCurrentUser) isQuery() {}

// Reader is the slice of the user service the dispatcher consumes.
type Reader interface {
	Get(ctx context.Context, subjectID id.SubjectID) (*service.UserView, error)
	GetCurrent(ctx context.Context) (*service.UserView, error)
	List(ctx context.Context, filter models.Filter) ([]*service.UserView, error)
}

// Result carries a whole query outcome. Exactly one accessor is populated
// per variant; consumers cannot mutate the outcome through it.
type Result struct {
	user  *service.UserView
	users []*service.UserView
}

// User returns the single-subject outcome, nil when absent.
func (r Result) User() *service.UserView {
	return r.user
}

// Users returns the listing outcome.
func (r Result) Users() []*service.UserView {
	return r.users
}

// Dispatcher routes queries to the orchestrator. It holds no state of its
// own and never caches outcomes.
type Dispatcher struct {
	users Reader
}

func NewDispatcher(users Reader) *Dispatcher {
	return &Dispatcher{users: users}
}

// Dispatch matches the variant exhaustively.
func (d *Dispatcher) Dispatch(ctx context.Context, q Query) (Result, error) {
	switch v := q.(type) {
	case GetUser:
		view, err := d.users.Get(ctx, v.SubjectID)
		if err != nil {
			return Result{}, err
		}
		return Result{user: view}, nil
	case GetCurrentUser:
		view, err := d.users.GetCurrent(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{user: view}, nil
	case GetUsers:
		views, err := d.users.List(ctx, v.Filter)
		if err != nil {
			return Result{}, err
		}
		return Result{users: views}, nil
	default:
		return Result{}, ErrUnregisteredVariant
	}
}
