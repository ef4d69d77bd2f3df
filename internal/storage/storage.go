// Package storage holds rendered invoice artifacts on local disk or in
// Cloudflare R2.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/ledgerly/internal"
)

// Storage defines the interface for file storage operations.
type Storage interface {
	// Put stores a file and returns its public URL. The URL is only
	// returned once the backend has confirmed the write.
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)

	// Delete removes a file by its key.
	// Returns nil if the file doesn't exist (idempotent).
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for accessing a stored file.
	URL(key string) string
}

// NewStorage creates a Storage implementation based on configuration.
// Returns LocalStorage for "local" provider, R2Storage for "r2" provider.
func NewStorage(ctx context.Context, cfg internal.StorageConfig) (Storage, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	case "r2":
		return NewR2Storage(ctx, R2Config{
			AccountID:   cfg.R2AccountID,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2BucketName,
			PublicURL:   cfg.R2PublicURL,
		})
	default:
		return nil, ErrUnknownProvider(cfg.Provider)
	}
}

// ContentTypePDF is the content type of rendered invoices.
const ContentTypePDF = "application/pdf"

// InvoicePDFKey is the object key of an invoice's PDF. Invoice numbers are
// unique per owner, so the key is stable across re-renders.
func InvoicePDFKey(ownerID uuid.UUID, invoiceNumber string) string {
	return fmt.Sprintf("invoices/%s/%s.pdf", ownerID, sanitizeKeyPart(invoiceNumber))
}

func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
