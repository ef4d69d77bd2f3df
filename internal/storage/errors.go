package storage

import (
	"fmt"

	"github.com/dukerupert/ledgerly/internal/domain"
)

var (
	// ErrR2AccountIDRequired is returned when R2 account ID is missing.
	ErrR2AccountIDRequired = &domain.Error{Code: domain.EINVALID, Message: "R2 account ID is required"}

	// ErrR2CredentialsRequired is returned when R2 credentials are missing.
	ErrR2CredentialsRequired = &domain.Error{Code: domain.EINVALID, Message: "R2 credentials are required"}

	// ErrR2BucketRequired is returned when R2 bucket name is missing.
	ErrR2BucketRequired = &domain.Error{Code: domain.EINVALID, Message: "R2 bucket name is required"}

	// ErrInvalidKey is returned for keys that would escape the storage root.
	ErrInvalidKey = &domain.Error{Code: domain.EINVALID, Message: "invalid storage key"}
)

// ErrUnknownProvider creates an error for unknown storage providers.
func ErrUnknownProvider(provider string) error {
	return &domain.Error{
		Code:    domain.EINVALID,
		Message: fmt.Sprintf("unknown storage provider: %s", provider),
	}
}
