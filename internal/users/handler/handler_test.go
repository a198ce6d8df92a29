package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"registrar/internal/users/command"
	"registrar/internal/users/directory"
	"registrar/internal/users/query"
	"registrar/internal/users/service"
	"registrar/internal/users/store"
	id "registrar/pkg/domain"
	"registrar/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	store     *store.InMemoryStore
	directory *directory.InMemoryDirectory
	router    chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.directory = directory.NewInMemory()
	s.mount(s.directory)
}

func (s *HandlerSuite) mount(dir service.Directory) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(s.store, dir, service.WithLogger(logger))
	h := New(command.NewDispatcher(svc), query.NewDispatcher(svc), logger)

	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterPublic(s.router)
}

func (s *HandlerSuite) do(method, target string, body any, ctxFns ...func(context.Context) context.Context) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	for _, fn := range ctxFns {
		ctx = fn(ctx)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func createBody() map[string]any {
	return map[string]any{
		"email":         "jane.doe@example.com",
		"password":      "s3cret-pass",
		"tenant_id":     "t1",
		"document_type": "NationalID",
		"role":          "Agent",
		"id_number":     "1002003000",
		"name":          "Jane",
		"last_name":     "Doe",
		"phone":         "+57300111",
		"channel":       "Email",
	}
}

func (s *HandlerSuite) createUser() UserResponse {
	rec := s.do(http.MethodPost, "/users", createBody())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp UserResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *HandlerSuite) TestCreate() {
	s.Run("valid request returns the provisioned user", func() {
		resp := s.createUser()
		s.NotEmpty(resp.SubjectID)
		s.Equal("Agent", resp.Role)
		s.Equal("t1", resp.TenantID)
	})

	s.Run("duplicate email conflicts", func() {
		rec := s.do(http.MethodPost, "/users", createBody())
		s.Equal(http.StatusConflict, rec.Code)
		s.Contains(rec.Body.String(), "conflict")
	})

	s.Run("missing required field is rejected before dispatch", func() {
		body := createBody()
		delete(body, "id_number")
		body["email"] = "other@example.com"
		rec := s.do(http.MethodPost, "/users", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid enum is rejected", func() {
		body := createBody()
		body["email"] = "other@example.com"
		body["channel"] = "Fax"
		rec := s.do(http.MethodPost, "/users", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed JSON is a bad request", func() {
		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestRegister_ForcesRegularRole() {
	body := createBody()
	body["role"] = "SuperAdmin"
	rec := s.do(http.MethodPost, "/users/register", body)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp UserResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("Regular", resp.Role)
}

func (s *HandlerSuite) TestGet() {
	created := s.createUser()

	s.Run("merges the directory email onto the row", func() {
		rec := s.do(http.MethodGet, "/users/"+created.SubjectID, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp UserResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("jane.doe@example.com", resp.Email)
		s.True(resp.Enabled)
	})

	s.Run("unknown subject is an explicit 404", func() {
		rec := s.do(http.MethodGet, "/users/missing", nil)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Contains(rec.Body.String(), "not_found")
	})
}

func (s *HandlerSuite) TestList() {
	s.createUser()

	other := createBody()
	other["email"] = "john.roe@example.com"
	other["name"] = "John"
	other["last_name"] = "Roe"
	other["id_number"] = "2003004000"
	rec := s.do(http.MethodPost, "/users", other)
	s.Require().Equal(http.StatusCreated, rec.Code)

	s.Run("unfiltered returns all", func() {
		rec := s.do(http.MethodGet, "/users", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp ListResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Len(resp.Users, 2)
	})

	s.Run("filters narrow the listing", func() {
		rec := s.do(http.MethodGet, "/users?tenant_id=t1&name=joh", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp ListResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Require().Len(resp.Users, 1)
		s.Equal("John", resp.Users[0].Name)
	})
}

func (s *HandlerSuite) TestUpdate() {
	created := s.createUser()

	s.Run("partial update returns the merged row", func() {
		rec := s.do(http.MethodPut, "/users/"+created.SubjectID, map[string]any{"phone": "+57300999"})
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp UserResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("+57300999", resp.Phone)
		s.Equal(created.Name, resp.Name)
	})

	s.Run("empty body is rejected", func() {
		rec := s.do(http.MethodPut, "/users/"+created.SubjectID, map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown subject is 404", func() {
		rec := s.do(http.MethodPut, "/users/missing", map[string]any{"phone": "+57300999"})
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestUpdate_MirrorLagIs502() {
	created := s.createUser()

	s.mount(&laggyDirectory{Directory: s.directory})

	rec := s.do(http.MethodPut, "/users/"+created.SubjectID, map[string]any{"role": "Admin"})
	s.Equal(http.StatusBadGateway, rec.Code)
	s.Contains(rec.Body.String(), "inconsistency")
}

func (s *HandlerSuite) TestDelete() {
	created := s.createUser()

	rec := s.do(http.MethodDelete, "/users/"+created.SubjectID, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/users/"+created.SubjectID, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestCurrentUser() {
	created := s.createUser()
	withClaims := func(ctx context.Context) context.Context {
		return requestcontext.WithClaims(ctx, requestcontext.IdentityClaims{
			Subject:  created.SubjectID,
			Email:    "claimed@example.com",
			Role:     "Admin",
			TenantID: "t1",
		})
	}

	s.Run("GET /users/me merges claims over the row", func() {
		rec := s.do(http.MethodGet, "/users/me", nil, withClaims)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp UserResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("claimed@example.com", resp.Email)
		s.Equal("Admin", resp.Role)
		s.Equal(created.IDNumber, resp.IDNumber)
	})

	s.Run("PUT /users/me updates own row", func() {
		rec := s.do(http.MethodPut, "/users/me", map[string]any{"name": "Janet"}, withClaims)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp UserResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("Janet", resp.Name)
	})

	s.Run("PUT /users/me cannot change role", func() {
		rec := s.do(http.MethodPut, "/users/me", map[string]any{"role": "SuperAdmin"}, withClaims)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("without claims is unauthorized", func() {
		rec := s.do(http.MethodGet, "/users/me", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

// laggyDirectory fails attribute mirror writes.
type laggyDirectory struct {
	service.Directory
}

func (d *laggyDirectory) UpdateAttributes(context.Context, id.SubjectID, map[string]string) error {
	return errors.New("throttled")
}
