package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const maxIdentifierLength = 64

// QueryString returns the trimmed query value. Values longer than maxLen are
// cut; maxLen <= 0 disables the cap.
func QueryString(r *http.Request, key string, maxLen int) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if maxLen > 0 && len(value) > maxLen {
		value = value[:maxLen]
	}
	return value
}

// RequiredPathParam returns a non-blank chi URL parameter or a validation error.
func RequiredPathParam(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, key))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").WithDetails(map[string]any{"field": key})
	}
	if len(value) > maxIdentifierLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter too long").WithDetails(map[string]any{"field": key, "max": maxIdentifierLength})
	}
	return value, nil
}
