package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/requestcontext"
)

// Normalizable request types canonicalize their fields before validation,
// e.g. lowercasing an email so lockout subjects compare equal.
type Normalizable interface {
	Normalize()
}

// Validatable request types reject malformed input.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes a single JSON object from the request body into T,
// then normalizes and validates it. On failure it writes the error response
// and returns false; the caller just returns.
//
//	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger)
//	if !ok {
//		return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()

	req, err := decode[T](r.Body)
	if err == nil {
		err = prepare(req)
	}
	if err != nil {
		logger.WarnContext(ctx, "rejected request body",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}

func decode[T any](body io.Reader) (*T, error) {
	var req T
	if body == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, decodeError(err)
	}
	if dec.More() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body must contain a single JSON object")
	}
	return &req, nil
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return dErrors.Wrap(err, dErrors.CodeTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body is required")
	default:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
}

// prepare keeps domain error codes from Validate and classifies anything
// else as a validation failure.
func prepare(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	v, ok := req.(Validatable)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
}
