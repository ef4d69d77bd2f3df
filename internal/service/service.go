// Package service implements the invoice lifecycle: the state machine driven
// by owners, the payment webhook reconciler and the daily overdue sweep,
// plus the notification, client and account services around them.
//
// Every status change is a compare-and-set in the store. A lost race comes
// back as domain.ErrStatusConflict and is treated as "already transitioned".
package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// logFrom prefers the request logger on ctx over the service default.
func logFrom(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}

// mergeValidation folds err's field failures into ve. Non-validation errors
// are returned unchanged.
func mergeValidation(ve *domain.ValidationError, err error) error {
	if err == nil {
		return nil
	}
	var other *domain.ValidationError
	if !errors.As(err, &other) {
		return err
	}
	for field, msg := range other.Fields {
		ve.Add(field, msg)
	}
	return nil
}

func withOp(err error, op string) error {
	var e *domain.Error
	if errors.As(err, &e) && e.Op == "" {
		cp := *e
		cp.Op = op
		return &cp
	}
	return err
}
