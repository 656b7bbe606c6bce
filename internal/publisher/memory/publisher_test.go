package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), map[string]string{"run_id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)
	id, err = pub.Publish(context.Background(), "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "payload", msgs[1])

	msgs[0] = "modified"
	assert.NotEqual(t, "modified", pub.Messages()[0])
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("topic deleted")
	pub.FailWith(boom)
	_, err := pub.Publish(context.Background(), "x")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, pub.Messages())
}
