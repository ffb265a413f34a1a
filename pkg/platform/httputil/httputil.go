package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/requestcontext"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

type wireError struct {
	status int
	code   string
}

// Lockouts read as a rate-limit style rejection with no Retry-After hint.
var wireErrors = map[dErrors.Code]wireError{
	dErrors.CodeNotFound:           {http.StatusNotFound, "not_found"},
	dErrors.CodeBadRequest:         {http.StatusBadRequest, "bad_request"},
	dErrors.CodeValidation:         {http.StatusBadRequest, "validation_error"},
	dErrors.CodeInvariantViolation: {http.StatusBadRequest, "validation_error"},
	dErrors.CodeConflict:           {http.StatusConflict, "conflict"},
	dErrors.CodeUnauthorized:       {http.StatusUnauthorized, "unauthorized"},
	dErrors.CodeInvalidToken:       {http.StatusUnauthorized, "invalid_token"},
	dErrors.CodeLocked:             {http.StatusTooManyRequests, "temporarily_restricted"},
	dErrors.CodeTooLarge:           {http.StatusRequestEntityTooLarge, "payload_too_large"},
}

var internalError = wireError{http.StatusInternalServerError, "internal_error"}

func lookup(code dErrors.Code) wireError {
	if we, ok := wireErrors[code]; ok {
		return we
	}
	return internalError
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // status already sent
}

// WriteError translates err into a JSON error body. Messages of internal
// failures never reach the caller.
func WriteError(w http.ResponseWriter, err error) {
	we := lookup(dErrors.CodeOf(err))
	resp := ErrorResponse{Error: we.code}
	if we != internalError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.Description = de.Message
		}
	}
	WriteJSON(w, we.status, resp)
}

// RequireSubject extracts the authenticated subject from context. A missing
// principal behind the auth middleware is a wiring bug, so it is internal.
func RequireSubject(ctx context.Context, logger *slog.Logger) (string, error) {
	p, ok := requestcontext.GetPrincipal(ctx)
	if ok && p.Subject != "" {
		return p.Subject, nil
	}
	if logger != nil {
		logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx))
	}
	return "", dErrors.New(dErrors.CodeInternal, "authentication context error")
}
