package apischema

import (
	"context"
	"net/url"

	"github.com/google/jsonschema-go/jsonschema"
)

// SchemaStore persists normalized API descriptions
type SchemaStore interface {
	SaveSchema(ctx context.Context, id string, data *ApiData) error
	GetSchema(ctx context.Context, id string) (*ApiData, error)
}

// Archiver copies saved API descriptions to long term storage
type Archiver interface {
	Archive(ctx context.Context, id string, data *ApiData) (location string, err error)
}

// ApiService provides the editor backend operations
type ApiService interface {
	// Get returns the stored API description.
	Get(ctx context.Context, id string) (*ApiData, error)
	// Create normalizes a submitted form and stores it under a new id.
	Create(ctx context.Context, form url.Values) (string, *ApiData, error)
	// Submit normalizes a submitted form and replaces the stored API description.
	Submit(ctx context.Context, id string, form url.Values) (*ApiData, error)
	// EditForm returns the pre-populated editor state, or a blank one when id is unknown.
	EditForm(ctx context.Context, id string) (*FormSnapshot, error)

	// Schema views
	JSONSchema(ctx context.Context, id string, part SchemaPart) (*jsonschema.Schema, error)
	Example(ctx context.Context, id string, part SchemaPart, useMock bool) (any, error)

	// Export copies the API description to the configured archive.
	Export(ctx context.Context, id string) (string, error)
}
