package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

// QueryInt reads key as an int in [lo, hi], returning fallback when absent.
func QueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, key+" must be an integer").
			WithDetails(map[string]any{"field": key})
	}
	if n < lo || n > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return n, nil
}

// QueryString returns the trimmed value of key, rejecting anything longer than maxLen.
func QueryString(r *http.Request, key string, maxLen int) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if maxLen > 0 && len(v) > maxLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" too long").
			WithDetails(map[string]any{"field": key, "max": maxLen})
	}
	return v, nil
}
