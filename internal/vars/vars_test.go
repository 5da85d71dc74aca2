package vars

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/store"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		literal  string
		mode     Mode
		datatype models.Datatype
		value    string
	}{
		{"42", ModeInternal, models.DatatypeInteger, "42"},
		{" 3.14 ", ModeInternal, models.DatatypeReal, "3.14"},
		{"True", ModeInternal, models.DatatypeBoolean, "True"},
		{"False", ModePython, models.DatatypeBoolean, "False"},
		{`"hello world"`, ModeInternal, models.DatatypeString, "hello world"},
		{"'x'", ModePython, models.DatatypeString, "x"},
		{"None", ModePython, models.DatatypeNone, "None"},
		{"None", ModeInternal, models.DatatypeString, "None"},
		{"-5", ModeInternal, models.DatatypeString, "-5"},
		{"bare text", ModeInternal, models.DatatypeString, "bare text"},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			datatype, value := Infer(tt.literal, tt.mode)
			assert.Equal(t, tt.datatype, datatype)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestParseAssignment(t *testing.T) {
	name, lit, ok := ParseAssignment("  count = 10 ")
	require.True(t, ok)
	assert.Equal(t, "count", name)
	assert.Equal(t, "10", lit)

	_, _, ok = ParseAssignment("count == 10")
	assert.False(t, ok)

	_, _, ok = ParseAssignment("print(x)")
	assert.False(t, ok)

	_, _, ok = ParseAssignment("1x = 3")
	assert.False(t, ok)
}

func newTestVars(t *testing.T) *Store {
	t.Helper()
	s, err := store.New("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return NewStore(s)
}

func TestAssignAndLookup(t *testing.T) {
	vs := newTestVars(t)
	ctx := context.Background()

	v, err := vs.Assign(ctx, "greeting", `"hi"`, ModeInternal)
	require.NoError(t, err)
	assert.Equal(t, models.DatatypeString, v.Datatype)

	got, ok, err := vs.Lookup(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", got.Value)

	_, ok, err = vs.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = vs.Assign(ctx, "bad name", "1", ModeInternal)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestSubstitute(t *testing.T) {
	vs := newTestVars(t)
	ctx := context.Background()

	_, err := vs.Assign(ctx, "user", "alice", ModeInternal)
	require.NoError(t, err)

	out, missing, err := vs.Substitute(ctx, "hello {user}, meet {friend}")
	require.NoError(t, err)
	assert.Equal(t, "hello alice, meet "+NotFoundMarker("friend"), out)
	assert.Equal(t, []string{"friend"}, missing)

	out, missing, err = vs.Substitute(ctx, "no placeholders {}")
	require.NoError(t, err)
	assert.Equal(t, "no placeholders {}", out)
	assert.Empty(t, missing)
}

func TestSubstituteBeforeInit(t *testing.T) {
	s, err := store.New("")
	require.NoError(t, err)
	defer s.Close()

	_, _, err = NewStore(s).Substitute(context.Background(), "{x}")
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}
