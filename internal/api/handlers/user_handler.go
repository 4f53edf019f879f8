package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pantrypal/users-api/internal/api/respond"
	"github.com/pantrypal/users-api/internal/monitoring"
	"github.com/pantrypal/users-api/internal/services"
)

// Response messages of the user endpoints.
const (
	MsgCreated  = "User created successfully"
	MsgUpdated  = "User updated successfully"
	MsgDeleted  = "User deleted successfully"
	MsgExists   = "User already exists"
	MsgNotFound = "User not found"
	msgInternal = "Internal server error"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.UserServiceProvider
	metrics *monitoring.Metrics
}

// NewUserHandler creates a new UserHandler. metrics may be nil.
func NewUserHandler(service services.UserServiceProvider, metrics *monitoring.Metrics) *UserHandler {
	return &UserHandler{service: service, metrics: metrics}
}

// Create handles new user registration.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, err := decodeCreate(r)
	if err != nil {
		h.fail(w, "create", err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), input)
	if err != nil {
		h.fail(w, "create", err)
		return
	}

	log.Info().Int64("user_id", user.ID).Str("handle", user.Handle).Msg("User created")
	h.metrics.ObserveOperation("create", "ok")
	respond.Message(w, http.StatusCreated, MsgCreated)
}

// GetAll handles the request to list every user.
func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	h.metrics.ObserveOperation("list", "ok")
	respond.JSON(w, http.StatusOK, users)
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.fail(w, "get", err)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	h.metrics.ObserveOperation("get", "ok")
	respond.JSON(w, http.StatusOK, user)
}

// Update handles replacing a user's password, full name and profile picture.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	input, err := decodeUpdate(r)
	if err != nil {
		h.fail(w, "update", err)
		return
	}

	if err := h.service.UpdateUser(r.Context(), id, input); err != nil {
		h.fail(w, "update", err)
		return
	}

	log.Info().Int64("user_id", id).Msg("User updated")
	h.metrics.ObserveOperation("update", "ok")
	respond.Message(w, http.StatusOK, MsgUpdated)
}

// Delete handles the permanent deletion of a user.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.fail(w, "delete", err)
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, "delete", err)
		return
	}

	log.Info().Int64("user_id", id).Msg("User deleted")
	h.metrics.ObserveOperation("delete", "ok")
	respond.Message(w, http.StatusOK, MsgDeleted)
}

// fail maps an operation error to its response. Only unexpected errors are logged as errors.
func (h *UserHandler) fail(w http.ResponseWriter, op string, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.metrics.ObserveOperation(op, "invalid")
		respond.Error(w, http.StatusUnprocessableEntity, validationErr.Error())
	case errors.Is(err, services.ErrUserExists):
		h.metrics.ObserveOperation(op, "conflict")
		respond.Error(w, http.StatusConflict, MsgExists)
	case errors.Is(err, services.ErrUserNotFound):
		h.metrics.ObserveOperation(op, "not_found")
		respond.Error(w, http.StatusNotFound, MsgNotFound)
	default:
		log.Error().Err(err).Str("operation", op).Msg("User operation failed")
		h.metrics.ObserveOperation(op, "error")
		respond.Error(w, http.StatusInternalServerError, msgInternal)
	}
}
