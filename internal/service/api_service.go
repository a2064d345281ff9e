package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/apischema"
	"github.com/lychee-technology/apischema/internal"
	"github.com/lychee-technology/apischema/internal/editor"
	"go.uber.org/zap"
)

type apiService struct {
	store      apischema.SchemaStore
	archiver   apischema.Archiver
	normalizer *internal.Normalizer
	newID      func() (string, error)

	// ids with a submission being saved
	inflight sync.Map
}

// NewApiService creates the editor backend. archiver may be nil, in which
// case Export reports that no archive is configured.
func NewApiService(
	store apischema.SchemaStore,
	archiver apischema.Archiver,
	editorConfig apischema.EditorConfig,
) apischema.ApiService {
	return &apiService{
		store:      store,
		archiver:   archiver,
		normalizer: internal.NewNormalizer(editorConfig),
		newID:      internal.NewApiID,
	}
}

func (s *apiService) Get(ctx context.Context, id string) (*apischema.ApiData, error) {
	return s.store.GetSchema(ctx, id)
}

func (s *apiService) Create(ctx context.Context, form url.Values) (string, *apischema.ApiData, error) {
	data, err := s.normalizer.Normalize(form)
	if err != nil {
		return "", nil, err
	}
	id, err := s.newID()
	if err != nil {
		return "", nil, err
	}
	if err := s.store.SaveSchema(ctx, id, data); err != nil {
		return "", nil, fmt.Errorf("failed to create api: %w", err)
	}
	zap.S().Infow("created api", "id", id, "name", data.Name, "method", data.Method, "path", data.Path)
	return id, data, nil
}

func (s *apiService) Submit(ctx context.Context, id string, form url.Values) (*apischema.ApiData, error) {
	if _, busy := s.inflight.LoadOrStore(id, struct{}{}); busy {
		zap.S().Warnw("rejected concurrent submission", "id", id)
		return nil, apischema.NewConflictError(id)
	}
	defer s.inflight.Delete(id)

	data, err := s.normalizer.Normalize(form)
	if err != nil {
		if report, ok := apischema.AsValidationReport(err); ok {
			zap.S().Debugw("submission rejected", "id", id, "fields", report.Paths())
		}
		return nil, err
	}
	if err := s.store.SaveSchema(ctx, id, data); err != nil {
		return nil, fmt.Errorf("failed to save api %s: %w", id, err)
	}
	zap.S().Infow("saved api", "id", id, "name", data.Name)
	return data, nil
}

func (s *apiService) EditForm(ctx context.Context, id string) (*apischema.FormSnapshot, error) {
	var defaults *internal.FormDefaults
	data, err := s.store.GetSchema(ctx, id)
	switch {
	case err == nil:
		defaults = internal.ApiDataToForm(data)
	case apischema.IsNotFoundError(err):
		// unknown ids edit a blank form
	default:
		return nil, err
	}
	return editor.NewForm(defaults).Snapshot(), nil
}

func (s *apiService) schema(ctx context.Context, id string, part apischema.SchemaPart) (*apischema.SchemaNode, error) {
	if !part.Valid() {
		return nil, apischema.NewValidationError("part", fmt.Sprintf("must be %s or %s", apischema.PartBodyJSON, apischema.PartResponse))
	}
	data, err := s.store.GetSchema(ctx, id)
	if err != nil {
		return nil, err
	}
	node := data.Schema(part)
	if node == nil {
		return nil, apischema.NewValidationError(string(part), "api has no schema for this part")
	}
	return node, nil
}

func (s *apiService) JSONSchema(ctx context.Context, id string, part apischema.SchemaPart) (*jsonschema.Schema, error) {
	node, err := s.schema(ctx, id, part)
	if err != nil {
		return nil, err
	}
	return apischema.ToJSONSchema(node)
}

func (s *apiService) Example(ctx context.Context, id string, part apischema.SchemaPart, useMock bool) (any, error) {
	node, err := s.schema(ctx, id, part)
	if err != nil {
		return nil, err
	}
	return apischema.BuildExample(node, useMock), nil
}

func (s *apiService) Export(ctx context.Context, id string) (string, error) {
	if s.archiver == nil {
		return "", apischema.NewError(apischema.ErrorTypeArchive, apischema.ErrCodeArchiveNotConfigured, "archive is not configured")
	}
	data, err := s.store.GetSchema(ctx, id)
	if err != nil {
		return "", err
	}
	return s.archiver.Archive(ctx, id, data)
}
