package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/homechef-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

// actorEmail returns the email of the authenticated caller.
func actorEmail(r *http.Request) (string, error) {
	email := middleware.EmailFromContext(r.Context())
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return email, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key).WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
