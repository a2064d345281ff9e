package internal

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/apischema"
)

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.Trim(part, " \"")
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		clean = []string{name}
	}
	return pgx.Identifier(clean).Sanitize()
}

// parseApiID parses the textual id of an API. Malformed ids cannot exist in
// storage and are reported as not found.
func parseApiID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apischema.NewApiNotFoundError(id).WithCause(err)
	}
	return parsed, nil
}

// NewApiID returns a time ordered id for a new API.
func NewApiID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", apischema.NewInternalError("generate api id", err)
	}
	return id.String(), nil
}
