package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/pantrypal/users-api/internal/models"
)

const maxBodyBytes = 1 << 20

// ValidationError reports a malformed request before any store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// CreatePayload is the body of POST /. "handle" is accepted as an alias of "user".
type CreatePayload struct {
	User           *string `json:"user"`
	Handle         *string `json:"handle"`
	Password       *string `json:"password"`
	FullName       *string `json:"full_name"`
	ProfilePicture *string `json:"profile_picture"`
}

// UpdatePayload is the body of PUT /{id}.
type UpdatePayload struct {
	Password       *string `json:"password"`
	FullName       *string `json:"full_name"`
	ProfilePicture *string `json:"profile_picture"`
}

type field struct {
	name  string
	value *string
}

func decodeCreate(r *http.Request) (models.UserCreate, error) {
	var p CreatePayload
	if err := decodeBody(r, &p); err != nil {
		return models.UserCreate{}, err
	}
	handle := p.User
	if handle == nil {
		handle = p.Handle
	}
	if err := requireStrings(
		field{"user", handle},
		field{"password", p.Password},
		field{"full_name", p.FullName},
		field{"profile_picture", p.ProfilePicture},
	); err != nil {
		return models.UserCreate{}, err
	}
	return models.UserCreate{
		Handle:         *handle,
		Password:       *p.Password,
		FullName:       *p.FullName,
		ProfilePicture: *p.ProfilePicture,
	}, nil
}

func decodeUpdate(r *http.Request) (models.UserUpdate, error) {
	var p UpdatePayload
	if err := decodeBody(r, &p); err != nil {
		return models.UserUpdate{}, err
	}
	if err := requireStrings(
		field{"password", p.Password},
		field{"full_name", p.FullName},
		field{"profile_picture", p.ProfilePicture},
	); err != nil {
		return models.UserUpdate{}, err
	}
	return models.UserUpdate{
		Password:       *p.Password,
		FullName:       *p.FullName,
		ProfilePicture: *p.ProfilePicture,
	}, nil
}

// decodeBody reads exactly one JSON object from the request body.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return &ValidationError{Reason: "request body is required"}
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return &ValidationError{Field: typeErr.Field, Reason: "must be a string"}
		case errors.As(err, &typeErr):
			return &ValidationError{Reason: "request body must be a JSON object"}
		default:
			return &ValidationError{Reason: "invalid JSON body"}
		}
	}
	if dec.More() {
		return &ValidationError{Reason: "request body must contain a single JSON object"}
	}
	return nil
}

func requireStrings(fields ...field) error {
	for _, f := range fields {
		if f.value == nil {
			return &ValidationError{Field: f.name, Reason: "field required"}
		}
		if utf8.RuneCountInString(*f.value) > models.MaxFieldLength {
			return &ValidationError{Field: f.name, Reason: fmt.Sprintf("must be at most %d characters", models.MaxFieldLength)}
		}
	}
	return nil
}

// userID parses the {id} path parameter. Any integer is accepted.
func userID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "id", Reason: "must be an integer"}
	}
	return id, nil
}
