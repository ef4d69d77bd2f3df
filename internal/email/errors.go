package email

import (
	"fmt"

	"github.com/dukerupert/ledgerly/internal/domain"
)

var (
	// ErrInvalidFromAddress is returned when the from address is invalid.
	ErrInvalidFromAddress = &domain.Error{Code: domain.EINVALID, Message: "Invalid from email address"}

	// ErrInvalidToAddress is returned when the to address is invalid.
	ErrInvalidToAddress = &domain.Error{Code: domain.EINVALID, Message: "Invalid to email address"}

	// ErrNoRecipients is returned for an email without recipients.
	ErrNoRecipients = &domain.Error{Code: domain.EINVALID, Message: "Email has no recipients"}
)

// ErrTemplateNotFound creates a template not found error.
func ErrTemplateNotFound(templateName string) error {
	return &domain.Error{
		Code:    domain.ENOTFOUND,
		Message: fmt.Sprintf("Email template %s not found", templateName),
	}
}

// ErrDelivery wraps a provider failure.
func ErrDelivery(provider string, err error) error {
	return &domain.Error{
		Code:    domain.EEXTERNAL,
		Message: fmt.Sprintf("%s delivery failed", provider),
		Op:      "email.send",
		Err:     err,
	}
}
