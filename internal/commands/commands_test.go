package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize(`add_int_cmd gr greet  "Say \"hi\" \\ now" Hello there`)
	require.NoError(t, err)
	assert.Equal(t, []string{"add_int_cmd", "gr", "greet", `Say "hi" \ now`, "Hello", "there"}, texts(tokens))
	assert.True(t, tokens[3].Quoted)
	assert.False(t, tokens[4].Quoted)

	_, err = Tokenize(`refine "never closed`)
	assert.ErrorIs(t, err, ErrUnterminatedQuote)

	tokens, err = Tokenize("   ")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestRest(t *testing.T) {
	input := `add_int_cmd gr greet "desc"   Hello,   world!  `
	tokens, err := Tokenize(input)
	require.NoError(t, err)
	assert.Equal(t, "Hello,   world!", Rest(input, tokens, 4))
	assert.Equal(t, "", Rest(input, tokens, len(tokens)))
}

func TestMatchPrefersLongestPhrase(t *testing.T) {
	tokens, err := Tokenize("INIT db now")
	require.NoError(t, err)
	def, n := Match(tokens)
	require.NotNil(t, def)
	assert.Equal(t, InitDB, def.Name)
	assert.Equal(t, 2, n)

	tokens, _ = Tokenize("init")
	def, n = Match(tokens)
	require.NotNil(t, def)
	assert.Equal(t, Init, def.Name)
	assert.Equal(t, 1, n)

	// quoted words never form a verb phrase
	tokens, _ = Tokenize(`"help"`)
	def, _ = Match(tokens)
	assert.Nil(t, def)
}

func TestLookupAndReserved(t *testing.T) {
	def, ok := Lookup("persist  memory db TO")
	require.True(t, ok)
	assert.Equal(t, PersistMemoryDB, def.Name)
	assert.Equal(t, "persist memory db to [filename.db]", def.Usage())

	_, ok = Lookup("nope")
	assert.False(t, ok)

	assert.True(t, IsReserved("Export"))
	assert.True(t, IsReserved("assign"))
	assert.False(t, IsReserved("greet"))
}

func TestPhrasesLongestFirst(t *testing.T) {
	phrases := Phrases()
	require.NotEmpty(t, phrases)
	for i := 1; i < len(phrases); i++ {
		assert.GreaterOrEqual(t, len(phrases[i-1]), len(phrases[i]))
	}
}

func TestMatchesPhrase(t *testing.T) {
	assert.True(t, MatchesPhrase("export log", "export log"))
	assert.True(t, MatchesPhrase("help add_int_cmd", "help"))
	assert.False(t, MatchesPhrase("helpme", "help"))
	assert.Equal(t, "list py vars", Normalize("  List\tPY   vars "))
}
