package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/simshell/internal/store"
)

func TestRecord(t *testing.T) {
	s, err := store.New("")
	require.NoError(t, err)
	defer s.Close()

	r := NewRecorder(s)
	ctx := context.Background()

	inputs := map[string]string{"command": "add_role bob viewer"}
	first, err := r.Record(ctx, "alice", "add_role", inputs, OutcomeDenied, "missing manage_roles")
	require.NoError(t, err)
	second, err := r.Record(ctx, "alice", "add_role", inputs, OutcomeDenied, "")
	require.NoError(t, err)

	assert.Len(t, first.InputsHash, 64)
	assert.Equal(t, first.InputsHash, second.InputsHash)
	assert.NotEqual(t, first.ID, second.ID)

	recs, err := s.ListAudit(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestHashInputsUnmarshalable(t *testing.T) {
	assert.Equal(t, "hash_error", hashInputs(make(chan int)))
}
