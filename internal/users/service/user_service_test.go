package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registrar/internal/users/directory"
	"registrar/internal/users/models"
	"registrar/internal/users/store"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	audit "registrar/pkg/platform/audit"
	auditmemory "registrar/pkg/platform/audit/store/memory"
	"registrar/pkg/platform/audit/publisher"
	"registrar/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store      *store.InMemoryStore
	directory  *directory.InMemoryDirectory
	auditStore *auditmemory.InMemoryStore
	publisher  *publisher.Publisher
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.directory = directory.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.publisher = publisher.NewPublisher(s.auditStore)
	s.service = New(s.store, s.directory, WithAuditPublisher(s.publisher))
}

func (s *ServiceSuite) TearDownTest() {
	s.publisher.Close()
}

func validInput() CreateInput {
	return CreateInput{
		Email:        "jane.doe@example.com",
		Password:     "s3cret-pass",
		TenantID:     "t1",
		DocumentType: models.DocumentNationalID,
		Role:         models.RoleAgent,
		IDNumber:     "1002003000",
		Name:         "Jane",
		LastName:     "Doe",
		Phone:        "+57300111",
		Channel:      models.ChannelEmail,
	}
}

func (s *ServiceSuite) TestCreate() {
	ctx := context.Background()

	s.Run("provisions both backends and round-trips every field", func() {
		user, err := s.service.Create(ctx, validInput())
		s.Require().NoError(err)
		s.Require().False(user.SubjectID.IsNil())

		view, err := s.service.Get(ctx, user.SubjectID)
		s.Require().NoError(err)
		s.Require().NotNil(view)
		s.Equal("jane.doe@example.com", view.Email)
		s.Equal(models.RoleAgent, view.Role)
		s.Equal("1002003000", view.IDNumber)
		s.Equal(models.ChannelEmail, view.Channel)
		s.False(view.Orphaned)

		principal, err := s.directory.GetPrincipal(ctx, user.SubjectID)
		s.Require().NoError(err)
		s.Equal("t1", principal.Attributes[models.AttrTenantID])
		s.Equal("Agent", principal.Attributes[models.AttrRole])
	})

	s.Run("duplicate email conflicts and writes no second row", func() {
		in := validInput()
		in.IDNumber = "other"
		_, err := s.service.Create(ctx, in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		rows, err := s.store.List(ctx, models.Filter{})
		s.Require().NoError(err)
		s.Len(rows, 1)
	})

	s.Run("rejects invalid input before any write", func() {
		in := validInput()
		in.Email = "not-an-email"
		_, err := s.service.Create(ctx, in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestCreate_RowInsertFault() {
	ctx := context.Background()

	faulty := &faultyStore{UserStore: s.store, insertErr: errors.New("connection reset")}
	svc := New(faulty, s.directory, WithAuditPublisher(s.publisher))

	_, err := svc.Create(ctx, validInput())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInconsistency))

	var partial *PartialCreateError
	s.Require().ErrorAs(err, &partial)
	s.Require().False(partial.SubjectID.IsNil())

	// The principal survives; no row exists.
	_, err = s.directory.GetPrincipal(ctx, partial.SubjectID)
	s.Require().NoError(err)
	_, err = s.store.FindBySubject(ctx, partial.SubjectID)
	s.Require().ErrorIs(err, store.ErrNotFound)

	events, err := s.auditStore.ListBySubject(ctx, partial.SubjectID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventUserCreatePartial), events[0].Action)
	s.Equal(audit.OutcomePartial, events[0].Outcome)
}

func (s *ServiceSuite) TestRegister_ForcesRegularRole() {
	ctx := context.Background()

	in := validInput()
	in.Role = models.RoleSuperAdmin
	user, err := s.service.Register(ctx, in)
	s.Require().NoError(err)
	s.Equal(models.RoleRegular, user.Role)

	principal, err := s.directory.GetPrincipal(ctx, user.SubjectID)
	s.Require().NoError(err)
	s.Equal("Regular", principal.Attributes[models.AttrRole])
}

func (s *ServiceSuite) TestGet_AbsentIsNotAnError() {
	view, err := s.service.Get(context.Background(), "missing")
	s.Require().NoError(err)
	s.Nil(view)
}

func (s *ServiceSuite) TestGet_OrphanedRow() {
	ctx := context.Background()

	user, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)
	s.Require().NoError(s.directory.DeletePrincipal(ctx, user.SubjectID))

	view, err := s.service.Get(ctx, user.SubjectID)
	s.Require().NoError(err)
	s.Require().NotNil(view)
	s.True(view.Orphaned)
	s.Empty(view.Email)
}

func (s *ServiceSuite) TestGetCurrent_MergePrecedence() {
	ctx := context.Background()

	user, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)

	claims := requestcontext.IdentityClaims{
		Subject:  user.SubjectID.String(),
		Email:    "fresh@example.com",
		Role:     "Admin",
		TenantID: "t1",
	}
	view, err := s.service.GetCurrent(requestcontext.WithClaims(ctx, claims))
	s.Require().NoError(err)

	// Claim-sourced email and role win; row fields fill the rest.
	s.Equal("fresh@example.com", view.Email)
	s.Equal(models.RoleAdmin, view.Role)
	s.Equal(user.IDNumber, view.IDNumber)
	s.Equal(user.Name, view.Name)
}

func (s *ServiceSuite) TestGetCurrent_RowTenantWins() {
	ctx := context.Background()

	user, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)

	claims := requestcontext.IdentityClaims{
		Subject:  user.SubjectID.String(),
		Email:    "fresh@example.com",
		Role:     string(user.Role),
		TenantID: "t2-lagging-claim",
	}
	view, err := s.service.GetCurrent(requestcontext.WithClaims(ctx, claims))
	s.Require().NoError(err)

	// The row owns the tenant even when the claim copy lags behind it.
	s.Equal(user.TenantID, view.TenantID)
	s.True(view.Enabled)
}

func (s *ServiceSuite) TestGetCurrent_Unauthorized() {
	_, err := s.service.GetCurrent(context.Background())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestGetCurrent_NoRowForSubject() {
	ctx := requestcontext.WithClaims(context.Background(), requestcontext.IdentityClaims{
		Subject: "ghost",
		Email:   "ghost@example.com",
	})
	_, err := s.service.GetCurrent(ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdate() {
	ctx := context.Background()

	user, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)

	s.Run("single field updates retain the rest", func() {
		now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
		phone := "+57300999"
		updated, err := s.service.Update(requestcontext.WithTime(ctx, now), user.SubjectID, models.UpdateFields{Phone: &phone})
		s.Require().NoError(err)
		s.Equal("+57300999", updated.Phone)
		s.Equal(user.Name, updated.Name)
		s.Equal(user.Role, updated.Role)
		s.Equal(now, updated.UpdatedAt)
	})

	s.Run("role change mirrors onto the principal", func() {
		role := models.RoleAdmin
		_, err := s.service.Update(ctx, user.SubjectID, models.UpdateFields{Role: &role})
		s.Require().NoError(err)

		principal, err := s.directory.GetPrincipal(ctx, user.SubjectID)
		s.Require().NoError(err)
		s.Equal("Admin", principal.Attributes[models.AttrRole])
	})

	s.Run("empty field set is rejected", func() {
		_, err := s.service.Update(ctx, user.SubjectID, models.UpdateFields{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalid enum value is rejected", func() {
		bad := models.Channel("Carrier Pigeon")
		_, err := s.service.Update(ctx, user.SubjectID, models.UpdateFields{Channel: &bad})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing user is not found", func() {
		name := "Nobody"
		_, err := s.service.Update(ctx, "missing", models.UpdateFields{Name: &name})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestUpdate_MirrorFault() {
	ctx := context.Background()

	user, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)

	faulty := &faultyDirectory{Directory: s.directory, updateAttrsErr: errors.New("throttled")}
	svc := New(s.store, faulty, WithAuditPublisher(s.publisher))

	role := models.RoleAdmin
	_, err = svc.Update(ctx, user.SubjectID, models.UpdateFields{Role: &role})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInconsistency))

	var lag *MirrorLagError
	s.Require().ErrorAs(err, &lag)
	s.Equal(user.SubjectID, lag.SubjectID)

	// The row update is retained even though the mirror lagged.
	row, err := s.store.FindBySubject(ctx, user.SubjectID)
	s.Require().NoError(err)
	s.Equal(models.RoleAdmin, row.Role)

	events, err := s.auditStore.ListBySubject(ctx, user.SubjectID)
	s.Require().NoError(err)
	s.Require().NotEmpty(events)
	s.Equal(string(audit.EventUserMirrorLagged), events[len(events)-1].Action)
}

func (s *ServiceSuite) TestUpdateCurrent() {
	ctx := context.Background()

	user, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)
	ctx = requestcontext.WithClaims(ctx, requestcontext.IdentityClaims{Subject: user.SubjectID.String()})

	s.Run("updates own row", func() {
		name := "Janet"
		updated, err := s.service.UpdateCurrent(ctx, models.UpdateFields{Name: &name})
		s.Require().NoError(err)
		s.Equal("Janet", updated.Name)
	})

	s.Run("mirrored fields are off limits", func() {
		role := models.RoleSuperAdmin
		_, err := s.service.UpdateCurrent(ctx, models.UpdateFields{Role: &role})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("requires claims", func() {
		name := "Janet"
		_, err := s.service.UpdateCurrent(context.Background(), models.UpdateFields{Name: &name})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestDelete() {
	ctx := context.Background()

	user, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(ctx, user.SubjectID))

	_, err = s.store.FindBySubject(ctx, user.SubjectID)
	s.Require().ErrorIs(err, store.ErrNotFound)
	_, err = s.directory.GetPrincipal(ctx, user.SubjectID)
	s.Require().ErrorIs(err, directory.ErrPrincipalNotFound)

	// Re-issuing a completed delete reports not-found and touches nothing.
	err = s.service.Delete(ctx, user.SubjectID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDelete_PrincipalFault() {
	ctx := context.Background()

	user, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)

	faulty := &faultyDirectory{Directory: s.directory, deleteErr: errors.New("throttled")}
	svc := New(s.store, faulty, WithAuditPublisher(s.publisher))

	err = svc.Delete(ctx, user.SubjectID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInconsistency))

	var partial *PartialDeleteError
	s.Require().ErrorAs(err, &partial)
	s.Equal(user.SubjectID, partial.SubjectID)

	// Row is gone; the principal remains.
	_, err = s.store.FindBySubject(ctx, user.SubjectID)
	s.Require().ErrorIs(err, store.ErrNotFound)
	_, err = s.directory.GetPrincipal(ctx, user.SubjectID)
	s.Require().NoError(err)

	events, err := s.auditStore.ListBySubject(ctx, user.SubjectID)
	s.Require().NoError(err)
	s.Require().NotEmpty(events)
	s.Equal(string(audit.EventUserDeletePartial), events[len(events)-1].Action)
}

func (s *ServiceSuite) TestList() {
	ctx := context.Background()

	first, err := s.service.Create(ctx, validInput())
	s.Require().NoError(err)

	second := validInput()
	second.Email = "john.roe@example.com"
	second.Name = "John"
	second.LastName = "Roe"
	second.IDNumber = "2003004000"
	johnUser, err := s.service.Create(ctx, second)
	s.Require().NoError(err)

	s.Run("joins directory flags onto every row", func() {
		views, err := s.service.List(ctx, models.Filter{TenantID: "t1"})
		s.Require().NoError(err)
		s.Require().Len(views, 2)
		for _, v := range views {
			s.False(v.Orphaned)
			s.NotEmpty(v.Email)
			s.True(v.Enabled)
		}
	})

	s.Run("filters combine with AND", func() {
		views, err := s.service.List(ctx, models.Filter{TenantID: "t1", Name: "joh", LastName: "roe"})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal(johnUser.SubjectID, views[0].SubjectID)
	})

	s.Run("exact id number match", func() {
		views, err := s.service.List(ctx, models.Filter{IDNumber: "1002003000"})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal(first.SubjectID, views[0].SubjectID)
	})

	s.Run("rows without principals are flagged, not hidden", func() {
		s.Require().NoError(s.directory.DeletePrincipal(ctx, first.SubjectID))

		views, err := s.service.List(ctx, models.Filter{})
		s.Require().NoError(err)
		s.Require().Len(views, 2)

		byID := map[id.SubjectID]*UserView{}
		for _, v := range views {
			byID[v.SubjectID] = v
		}
		s.True(byID[first.SubjectID].Orphaned)
		s.False(byID[johnUser.SubjectID].Orphaned)
	})
}

// faultyStore fails selected operations and delegates the rest.
type faultyStore struct {
	UserStore
	insertErr error
}

func (f *faultyStore) Insert(ctx context.Context, user *models.User) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.UserStore.Insert(ctx, user)
}

// faultyDirectory fails selected operations and delegates the rest.
type faultyDirectory struct {
	Directory
	updateAttrsErr error
	deleteErr      error
}

func (f *faultyDirectory) UpdateAttributes(ctx context.Context, subjectID id.SubjectID, attrs map[string]string) error {
	if f.updateAttrsErr != nil {
		return f.updateAttrsErr
	}
	return f.Directory.UpdateAttributes(ctx, subjectID, attrs)
}

func (f *faultyDirectory) DeletePrincipal(ctx context.Context, subjectID id.SubjectID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Directory.DeletePrincipal(ctx, subjectID)
}
