// Package api holds the JSON handlers for the owner-facing API. Every
// handler reads the caller from the principal RequireAuth placed on the
// context and passes it to the services as an explicit owner id.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/handler"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON object into dst. Keys in ignored are dropped, other
// keys outside allowed are rejected as field errors before anything is
// decoded, then dst is checked against its validate tags.
func decode(r *http.Request, op string, allowed, ignored domain.FieldSet, dst any) error {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Invalid(op, "Request body too large")
		}
		return domain.Invalid(op, "Request body must be a JSON object")
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		if ignored.Contains(key) {
			delete(raw, key)
			continue
		}
		keys = append(keys, key)
	}
	if err := allowed.Check(op, keys); err != nil {
		return err
	}

	// Re-marshal the vetted map so dst sees exactly the allowed keys.
	body, err := json.Marshal(raw)
	if err != nil {
		return domain.Internal(err, op, "failed to re-encode request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domain.NewValidationError(op, typeErr.Field, "has the wrong type")
		}
		return domain.Invalid(op, "Request body is malformed: "+err.Error())
	}
	return validateStruct(op, dst)
}

// validateStruct converts validator failures into a field error map keyed
// by JSON path, e.g. "items[1].description".
func validateStruct(op string, dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "failed to validate request")
	}
	ve := &domain.ValidationError{Op: op}
	for _, fe := range verrs {
		ve.Add(fieldPath(fe.Namespace()), fieldMessage(fe))
	}
	return ve
}

func fieldPath(ns string) string {
	// Namespace is "createInvoiceRequest.items[0].description"; drop the type.
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "alpha":
		return "must contain letters only"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// pathID parses a {name} path segment as a uuid. Malformed ids answer 404
// like unknown ones.
func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	return id, err == nil
}

// owner returns the authenticated caller. Routes are wrapped in RequireAuth,
// so uuid.Nil means a wiring mistake.
func owner(r *http.Request) (uuid.UUID, bool) {
	id := domain.UserIDFromContext(r.Context())
	return id, id != uuid.Nil
}

// Date is a calendar date on the wire ("2006-01-02"). RFC 3339 timestamps
// are accepted and truncated.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	d.Time = domain.DateOnly(t)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(time.DateOnly))
}

// withOwner resolves the caller and the {id} segment, answering 401/404
// itself when either is missing.
func withOwner(w http.ResponseWriter, r *http.Request, withID bool) (ownerID, id uuid.UUID, ok bool) {
	ownerID, ok = owner(r)
	if !ok {
		handler.UnauthorizedResponse(w, r)
		return uuid.Nil, uuid.Nil, false
	}
	if !withID {
		return ownerID, uuid.Nil, true
	}
	id, ok = pathID(r, "id")
	if !ok {
		handler.NotFoundResponse(w, r)
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, id, true
}
