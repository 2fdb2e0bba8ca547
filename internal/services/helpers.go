package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// isUniqueConstraintError reports whether the error came from a unique index
// violation. gorm translates some drivers to ErrDuplicatedKey; sqlite and
// mysql leak through as driver errors, so fall back to message sniffing.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
