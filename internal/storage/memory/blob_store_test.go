package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectReplacesContent(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "items.json", "application/json", bytes.NewReader([]byte("[1]")))
	require.NoError(t, err)
	assert.Equal(t, "memory://items.json", uri)

	_, err = store.PutObject(context.Background(), "items.json", "application/json", bytes.NewReader([]byte("[]")))
	require.NoError(t, err)

	got, ok := store.Object("items.json")
	require.True(t, ok)
	assert.Equal(t, "[]", string(got))

	got[0] = 'X'
	again, _ := store.Object("items.json")
	assert.Equal(t, "[]", string(again))

	_, ok = store.Object("missing.json")
	assert.False(t, ok)
}
