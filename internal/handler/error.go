// Package handler holds the JSON response helpers shared by the HTTP
// handlers. Subpackages api and webhook hold the handlers themselves.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// errorBody is the wire shape of every error: {"error":{code,message,fields}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHENTICATED, domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT, domain.EINVALIDSTATE:
		return http.StatusConflict // 409
	case domain.EEXTERNAL:
		return http.StatusBadGateway // 502
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse renders err, logging it on the request logger. Server-side
// failures are also reported to the request's Sentry hub.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	detail := errorDetail{
		Code:    code,
		Message: domain.ErrorMessage(err),
		Fields:  domain.GetValidationFields(err),
	}

	log := zerolog.Ctx(r.Context())
	ev := log.Info()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	}
	ev.Err(err).
		Str("code", code).
		Str("op", domain.ErrorOp(err)).
		Int("status", status).
		Msg("request failed")

	JSON(w, status, errorBody{Error: detail})
}

func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required"))
}

func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.EFORBIDDEN, "", "You don't have permission to access this resource"))
}

// InternalErrorResponse hides err behind a generic message.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

func BadRequestResponse(w http.ResponseWriter, r *http.Request, message string) {
	ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "%s", message))
}
