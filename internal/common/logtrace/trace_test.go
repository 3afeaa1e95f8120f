package logtrace

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	assert.Equal(t, "", RequestIdFromContext(context.Background()))

	id := NewRequestID()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	ctx := WithRequestID(context.Background(), id)
	assert.Equal(t, id, RequestIdFromContext(ctx))
}
