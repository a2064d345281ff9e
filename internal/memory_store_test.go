package internal

import (
	"context"
	"sync"
	"testing"

	"github.com/lychee-technology/apischema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySchemaStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySchemaStore()

	_, err := store.GetSchema(ctx, testApiID)
	assert.True(t, apischema.IsNotFoundError(err))

	data := sampleApiData()
	require.NoError(t, store.SaveSchema(ctx, testApiID, data))

	// later changes by the caller do not leak into the store
	data.Name = "changed"

	got, err := store.GetSchema(ctx, testApiID)
	require.NoError(t, err)
	assert.Equal(t, "Get user", got.Name)
	assert.Equal(t, sampleApiData(), got)

	got.Path = "/other"
	again, err := store.GetSchema(ctx, testApiID)
	require.NoError(t, err)
	assert.Equal(t, "/users/{id}", again.Path)

	assert.True(t, apischema.IsNotFoundError(store.SaveSchema(ctx, "nope", data)))
	assert.True(t, apischema.IsValidationError(store.SaveSchema(ctx, testApiID, nil)))
	assert.Equal(t, 1, store.Len())
}

func TestMemorySchemaStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySchemaStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := NewApiID()
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, store.SaveSchema(ctx, id, sampleApiData()))
			_, err = store.GetSchema(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, store.Len())
}
