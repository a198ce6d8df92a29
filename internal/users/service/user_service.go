package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"registrar/internal/users/directory"
	"registrar/internal/users/models"
	"registrar/internal/users/store"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/email"
	audit "registrar/pkg/platform/audit"
	"registrar/pkg/requestcontext"
)

// CreateInput carries everything needed to provision a user in both
// backends. The subject identifier is not an input; the directory
// assigns it.
type CreateInput struct {
	Email        string
	Password     string
	TenantID     id.TenantID
	DocumentType models.DocumentType
	Role         models.Role
	IDNumber     string
	Name         string
	LastName     string
	Phone        string
	Channel      models.Channel
}

// Validate checks required fields and enum membership. Handlers validate
// at the boundary too; the service re-checks because commands can be
// built by callers other than the HTTP layer.
func (in *CreateInput) Validate() error {
	in.Email = strings.TrimSpace(in.Email)
	if !email.Valid(in.Email) {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if in.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if in.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	if in.IDNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "id_number is required")
	}
	if in.Name == "" || in.LastName == "" {
		return dErrors.New(dErrors.CodeValidation, "name and last_name are required")
	}
	if _, err := models.ParseDocumentType(string(in.DocumentType)); err != nil {
		return err
	}
	if _, err := models.ParseRole(string(in.Role)); err != nil {
		return err
	}
	if _, err := models.ParseChannel(string(in.Channel)); err != nil {
		return err
	}
	return nil
}

// UserView is a row joined with the directory's view of the same subject.
// Orphaned marks a row whose subject has no principal behind it.
type UserView struct {
	*models.User
	Email    string
	Enabled  bool
	Status   string
	Orphaned bool
}

// Create provisions a user: principal first, record row second. A
// duplicate login identifier fails fast before any row is written. A
// row-insert failure after the principal write is not compensated; it
// surfaces as a PartialCreateError carrying the minted subject ID.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	return s.create(ctx, in, audit.EventUserCreated)
}

// Register is the self-service variant of Create: same write protocol,
// role forced to Regular regardless of input.
func (s *Service) Register(ctx context.Context, in CreateInput) (*models.User, error) {
	in.Role = models.RoleRegular
	return s.create(ctx, in, audit.EventUserRegistered)
}

func (s *Service) create(ctx context.Context, in CreateInput, event audit.AuditEvent) (*models.User, error) {
	ctx, span := s.startSpan(ctx, "users.Create")
	defer span.End()
	start := time.Now()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	principal, err := s.directory.CreatePrincipal(ctx, directory.CreateInput{
		Email:  in.Email,
		Secret: in.Password,
		Attributes: map[string]string{
			models.AttrTenantID: in.TenantID.String(),
			models.AttrRole:     string(in.Role),
		},
	})
	if err != nil {
		if errors.Is(err, directory.ErrDuplicatePrincipal) {
			return nil, dErrors.New(dErrors.CodeConflict, "a user with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "principal directory rejected create")
	}

	now := requestcontext.Now(ctx)
	user := &models.User{
		SubjectID:    principal.SubjectID,
		TenantID:     in.TenantID,
		DocumentType: in.DocumentType,
		Role:         in.Role,
		IDNumber:     in.IDNumber,
		Name:         in.Name,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Channel:      in.Channel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Insert(ctx, user); err != nil {
		s.logAudit(ctx, audit.EventUserCreatePartial, audit.Event{
			SubjectID: principal.SubjectID,
			TenantID:  in.TenantID,
			Outcome:   audit.OutcomePartial,
			Reason:    err.Error(),
			Email:     in.Email,
		})
		if s.metrics != nil {
			s.metrics.IncrementPartialCreates()
		}
		partial := &PartialCreateError{SubjectID: principal.SubjectID, Cause: err}
		return nil, dErrors.Wrap(partial, dErrors.CodeInconsistency, "user record insert failed after principal create")
	}

	s.logAudit(ctx, event, audit.Event{
		SubjectID: user.SubjectID,
		TenantID:  user.TenantID,
		Outcome:   audit.OutcomeCompleted,
	})
	if s.metrics != nil {
		s.metrics.IncrementUsersCreated()
		s.metrics.ObserveCreate(start)
	}
	return user, nil
}

// Get returns the row joined with the principal's email and account
// flags. An absent row is an absent result, not an error. A row whose
// principal is missing comes back with Orphaned set.
func (s *Service) Get(ctx context.Context, subjectID id.SubjectID) (*UserView, error) {
	ctx, span := s.startSpan(ctx, "users.Get")
	defer span.End()

	user, err := s.store.FindBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user record")
	}

	view := &UserView{User: user}
	principal, err := s.directory.GetPrincipal(ctx, subjectID)
	if err != nil {
		if errors.Is(err, directory.ErrPrincipalNotFound) {
			view.Orphaned = true
			return view, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "principal directory lookup failed")
	}
	view.Email = principal.Email
	view.Enabled = principal.Enabled
	view.Status = principal.Status
	return view, nil
}

// GetCurrent resolves the caller's own record from context claims. The
// claim-sourced email and role are authoritative over the row's copies;
// everything else comes from the row.
func (s *Service) GetCurrent(ctx context.Context) (*UserView, error) {
	ctx, span := s.startSpan(ctx, "users.GetCurrent")
	defer span.End()

	claims, ok := requestcontext.Claims(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no identity claims in request")
	}

	user, err := s.store.FindBySubject(ctx, id.SubjectID(claims.Subject))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no user record for subject")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user record")
	}

	if role, err := models.ParseRole(claims.Role); err == nil {
		user.Role = role
	}
	// The tenant stays row-sourced; a stale claim copy must not shadow it.
	// A caller holding a verified token necessarily has an enabled principal.
	return &UserView{User: user, Email: claims.Email, Enabled: true}, nil
}

// List runs the filter against the record store and joins the
// directory's principals for the same tenant scope. The two reads fan
// out concurrently. Rows with no principal behind them are returned with
// Orphaned set, never silently hidden.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*UserView, error) {
	ctx, span := s.startSpan(ctx, "users.List")
	defer span.End()
	start := time.Now()

	var (
		users      []*models.User
		principals []*directory.Principal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.store.List(gctx, filter)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list user records")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		principals, err = s.directory.ListPrincipals(gctx, filter.TenantID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list principals")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bySubject := make(map[id.SubjectID]*directory.Principal, len(principals))
	for _, p := range principals {
		bySubject[p.SubjectID] = p
	}

	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		view := &UserView{User: u}
		if p, ok := bySubject[u.SubjectID]; ok {
			view.Email = p.Email
			view.Enabled = p.Enabled
			view.Status = p.Status
		} else {
			view.Orphaned = true
		}
		views = append(views, view)
	}

	if s.metrics != nil {
		s.metrics.ObserveListMerge(start)
	}
	return views, nil
}

// Update applies a partial field set: record row first, attribute mirror
// second when tenant or role changed. A mirror failure after the row
// write returns MirrorLagError; the row update is retained and re-issuing
// the same update reconciles the mirror. No automatic retry.
func (s *Service) Update(ctx context.Context, subjectID id.SubjectID, fields models.UpdateFields) (*models.User, error) {
	ctx, span := s.startSpan(ctx, "users.Update")
	defer span.End()
	start := time.Now()

	if fields.Empty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, subjectID, fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user record")
	}

	if fields.TouchesMirror() {
		if err := s.directory.UpdateAttributes(ctx, subjectID, fields.MirrorAttributes()); err != nil {
			s.logAudit(ctx, audit.EventUserMirrorLagged, audit.Event{
				SubjectID: subjectID,
				TenantID:  updated.TenantID,
				Outcome:   audit.OutcomeLagged,
				Reason:    err.Error(),
			})
			if s.metrics != nil {
				s.metrics.IncrementMirrorLagged()
			}
			lag := &MirrorLagError{SubjectID: subjectID, Cause: err}
			return nil, dErrors.Wrap(lag, dErrors.CodeInconsistency, "attribute mirror failed after record update")
		}
	}

	s.logAudit(ctx, audit.EventUserUpdated, audit.Event{
		SubjectID: subjectID,
		TenantID:  updated.TenantID,
		Outcome:   audit.OutcomeCompleted,
	})
	if s.metrics != nil {
		s.metrics.ObserveUpdate(start)
	}
	return updated, nil
}

// UpdateCurrent applies a partial self-update to the caller's own row.
// The mirrored fields are off limits here; tenant and role changes go
// through the admin path.
func (s *Service) UpdateCurrent(ctx context.Context, fields models.UpdateFields) (*models.User, error) {
	claims, ok := requestcontext.Claims(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no identity claims in request")
	}
	if fields.TouchesMirror() {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot change tenant or role on own record")
	}
	return s.Update(ctx, id.SubjectID(claims.Subject), fields)
}

// Delete removes the record row first, then the principal. A missing row
// aborts before the directory is touched, so re-issuing a completed
// delete reports not-found without another directory call. A principal
// delete failure after row removal surfaces as PartialDeleteError.
func (s *Service) Delete(ctx context.Context, subjectID id.SubjectID) error {
	ctx, span := s.startSpan(ctx, "users.Delete")
	defer span.End()

	user, err := s.store.FindBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user record")
	}

	if err := s.store.Delete(ctx, subjectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete user record")
	}

	if err := s.directory.DeletePrincipal(ctx, subjectID); err != nil && !errors.Is(err, directory.ErrPrincipalNotFound) {
		s.logAudit(ctx, audit.EventUserDeletePartial, audit.Event{
			SubjectID: subjectID,
			TenantID:  user.TenantID,
			Outcome:   audit.OutcomePartial,
			Reason:    err.Error(),
		})
		if s.metrics != nil {
			s.metrics.IncrementPartialDeletes()
		}
		partial := &PartialDeleteError{SubjectID: subjectID, Cause: err}
		return dErrors.Wrap(partial, dErrors.CodeInconsistency, "principal removal failed after record delete")
	}

	s.logAudit(ctx, audit.EventUserDeleted, audit.Event{
		SubjectID: subjectID,
		TenantID:  user.TenantID,
		Outcome:   audit.OutcomeCompleted,
	})
	if s.metrics != nil {
		s.metrics.IncrementUsersDeleted()
	}
	return nil
}
