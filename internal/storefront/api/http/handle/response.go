package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"restaurant-app/internal/identity"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/xpkg/logger"
)

var (
	errParseJSON     = errors.New("failed to parse JSON")
	errInternal      = errors.New("something went wrong, try again later")
	errPasswordMatch = errors.New("Passwords do not match.")
)

// jsonResponse writes data as JSON with the specified HTTP status code.
func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// jsonError writes an error response as JSON with the specified HTTP status code.
func jsonError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errParseJSON
	}
	return nil
}

// serviceError maps a service error to its status and user-facing message.
// Gateway and unknown failures are logged and answered with a short message.
func serviceError(w http.ResponseWriter, mylog logger.Logger, err error) {
	var credErr *identity.CredentialError

	switch {
	case errors.As(err, &credErr):
		code := http.StatusBadRequest
		switch credErr.Code {
		case identity.CodeUserNotFound, identity.CodeWrongPassword:
			code = http.StatusUnauthorized
		case identity.CodeEmailInUse:
			code = http.StatusConflict
		}
		jsonError(w, code, credErr)
	case errors.Is(err, identity.ErrInvalidCredential):
		jsonError(w, http.StatusUnauthorized, identity.ErrInvalidCredential)

	case errors.Is(err, core.ErrUnauthenticated):
		jsonError(w, http.StatusUnauthorized, core.ErrUnauthenticated)
	case errors.Is(err, identity.ErrEmailNotVerified):
		jsonError(w, http.StatusForbidden, identity.ErrEmailNotVerified)
	case errors.Is(err, core.ErrForbidden):
		jsonError(w, http.StatusForbidden, core.ErrForbidden)

	case errors.Is(err, core.ErrOrderNotFound),
		errors.Is(err, core.ErrSectionNotFound),
		errors.Is(err, core.ErrItemNotFound):
		jsonError(w, http.StatusNotFound, err)

	case errors.Is(err, core.ErrEmptyCart),
		errors.Is(err, core.ErrNotConfirmed),
		errors.Is(err, core.ErrInvalidMenuItem),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrUnsupportedProvider):
		jsonError(w, http.StatusBadRequest, err)

	case errors.Is(err, core.ErrPartialData):
		mylog.Action("partial_data").Warn("Record is incomplete", "error", err.Error())
		jsonError(w, http.StatusUnprocessableEntity, core.ErrPartialData)

	case errors.Is(err, core.ErrGatewayUnavailable):
		mylog.Action("gateway_unavailable").Error("Storage request failed", err)
		jsonError(w, http.StatusServiceUnavailable, core.ErrGatewayUnavailable)

	default:
		mylog.Action("request_failed").Error("Request failed", err)
		jsonError(w, http.StatusInternalServerError, errInternal)
	}
}
