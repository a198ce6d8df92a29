// Package handler wires the user lifecycle endpoints to the command and
// query dispatchers.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registrar/internal/users/command"
	"registrar/internal/users/query"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

// Handler translates HTTP requests into commands and queries. It holds no
// domain logic; validation happens in the request types and everything
// else in the orchestrator behind the dispatchers.
type Handler struct {
	commands *command.Dispatcher
	queries  *query.Dispatcher
	logger   *slog.Logger
}

// New constructs a users handler with its dependencies.
func New(commands *command.Dispatcher, queries *query.Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		commands: commands,
		queries:  queries,
		logger:   logger,
	}
}

// Register mounts the claim-protected user endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.HandleCreate)
	r.Get("/users", h.HandleList)
	r.Get("/users/me", h.HandleGetCurrent)
	r.Put("/users/me", h.HandleUpdateCurrent)
	r.Get("/users/{subjectID}", h.HandleGet)
	r.Put("/users/{subjectID}", h.HandleUpdate)
	r.Delete("/users/{subjectID}", h.HandleDelete)
}

// RegisterPublic mounts the endpoints that run without claims.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/users/register", h.HandleRegister)
}

// HandleCreate handles POST /users.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CreateUserRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.commands.Dispatch(ctx, command.CreateUser{Input: req.ToInput()})
	if err != nil {
		h.logger.ErrorContext(ctx, "user create failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "user created",
		"request_id", requestcontext.RequestID(ctx),
		"subject_id", user.SubjectID,
		"tenant_id", user.TenantID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromUser(user))
}

// HandleRegister handles POST /users/register. Same write sequence as
// create; the role is always Regular.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[RegisterUserRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.commands.Dispatch(ctx, command.RegisterUser{Input: req.ToInput()})
	if err != nil {
		h.logger.ErrorContext(ctx, "self-registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromUser(user))
}

// HandleList handles GET /users.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.queries.Dispatch(ctx, query.GetUsers{Filter: FilterFromQuery(r.URL.Query())})
	if err != nil {
		h.logger.ErrorContext(ctx, "user listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromViews(result.Users()))
}

// HandleGet handles GET /users/{subjectID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := id.SubjectID(chi.URLParam(r, "subjectID"))

	result, err := h.queries.Dispatch(ctx, query.GetUser{SubjectID: subjectID})
	if err != nil {
		h.logger.ErrorContext(ctx, "user lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if result.User() == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "user not found"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromView(result.User()))
}

// HandleGetCurrent handles GET /users/me.
func (h *Handler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.queries.Dispatch(ctx, query.GetCurrentUser{})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromView(result.User()))
}

// HandleUpdate handles PUT /users/{subjectID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := id.SubjectID(chi.URLParam(r, "subjectID"))

	req, ok := httputil.Decode[UpdateUserRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.commands.Dispatch(ctx, command.UpdateUser{
		SubjectID: subjectID,
		Fields:    req.ToFields(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "user update failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}

// HandleUpdateCurrent handles PUT /users/me.
func (h *Handler) HandleUpdateCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[UpdateUserRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.commands.Dispatch(ctx, command.UpdateCurrentUser{Fields: req.ToFields()})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}

// HandleDelete handles DELETE /users/{subjectID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := id.SubjectID(chi.URLParam(r, "subjectID"))

	if _, err := h.commands.Dispatch(ctx, command.DeleteUser{SubjectID: subjectID}); err != nil {
		h.logger.ErrorContext(ctx, "user delete failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
