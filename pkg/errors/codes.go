package errors

import "net/http"

// Code is the stable, machine-readable identifier returned to API clients.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	// CodeNoRidersAvailable and CodeNoOrdersFound answer with 404 like
	// CodeNotFound but are never folded into it.
	CodeNoRidersAvailable Code = "NO_RIDERS_AVAILABLE"
	CodeNoOrdersFound     Code = "NO_ORDERS_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

type exposure uint8

const (
	exposeMessage exposure = 1 << iota
	exposeDetails
)

type policy struct {
	status    int
	retryable bool
	fallback  string
	expose    exposure
}

var policies = map[Code]policy{
	CodeValidation:        {status: http.StatusBadRequest, fallback: "validation failed", expose: exposeMessage | exposeDetails},
	CodeUnauthorized:      {status: http.StatusUnauthorized, fallback: "authentication required", expose: exposeMessage},
	CodeForbidden:         {status: http.StatusForbidden, fallback: "access denied", expose: exposeMessage},
	CodeNotFound:          {status: http.StatusNotFound, fallback: "resource not found", expose: exposeMessage},
	CodeNoRidersAvailable: {status: http.StatusNotFound, retryable: true, fallback: "no available riders in the same area", expose: exposeMessage | exposeDetails},
	CodeNoOrdersFound:     {status: http.StatusNotFound, fallback: "no orders found", expose: exposeMessage | exposeDetails},
	CodeConflict:          {status: http.StatusConflict, fallback: "conflict detected", expose: exposeMessage},
	CodeStateConflict:     {status: http.StatusUnprocessableEntity, fallback: "state transition disallowed", expose: exposeMessage | exposeDetails},
	CodeRateLimit:         {status: http.StatusTooManyRequests, retryable: true, fallback: "rate limit exceeded", expose: exposeMessage},
	CodeInternal:          {status: http.StatusInternalServerError, retryable: true, fallback: "internal server error"},
	CodeDependency:        {status: http.StatusServiceUnavailable, retryable: true, fallback: "dependency unavailable", expose: exposeDetails},
}

// Unknown codes behave like CodeInternal.
func (c Code) policy() policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return policies[CodeInternal]
}

func (c Code) HTTPStatus() int { return c.policy().status }

// Retryable hints that the same request may succeed later unchanged.
func (c Code) Retryable() bool { return c.policy().retryable }

// PublicMessage is the generic text shown when the error's own message is
// withheld.
func (c Code) PublicMessage() string { return c.policy().fallback }

// ExposesMessage reports whether an error's own message may reach clients.
func (c Code) ExposesMessage() bool { return c.policy().expose&exposeMessage != 0 }

func (c Code) ExposesDetails() bool { return c.policy().expose&exposeDetails != 0 }
