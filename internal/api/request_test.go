package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUID(t *testing.T) {
	t.Run("Absent values mean no uid", func(t *testing.T) {
		for _, raw := range []string{``, `null`, `""`, `"  "`} {
			uid, err := parseUID(json.RawMessage(raw))
			require.NoError(t, err, raw)
			assert.Nil(t, uid, raw)
		}
	})

	t.Run("Numbers and numeric strings", func(t *testing.T) {
		cases := map[string]uint32{
			`0`:            0,
			`42`:           42,
			`"42"`:         42,
			`" 7 "`:        7,
			`4294967295`:   4294967295,
			`"4294967295"`: 4294967295,
		}
		for raw, want := range cases {
			uid, err := parseUID(json.RawMessage(raw))
			require.NoError(t, err, raw)
			require.NotNil(t, uid, raw)
			assert.Equal(t, want, *uid, raw)
		}
	})

	t.Run("Out of range or malformed", func(t *testing.T) {
		for _, raw := range []string{`-1`, `4294967296`, `1.5`, `"abc"`, `true`, `{}`} {
			_, err := parseUID(json.RawMessage(raw))
			assert.ErrorIs(t, err, errInvalidUID, raw)
		}
	})
}

func TestParseTokens(t *testing.T) {
	t.Run("Single string", func(t *testing.T) {
		tokens, err := parseTokens(json.RawMessage(`"tok-1"`))
		require.NoError(t, err)
		assert.Equal(t, []string{"tok-1"}, tokens)
	})

	t.Run("Array drops blanks", func(t *testing.T) {
		tokens, err := parseTokens(json.RawMessage(`["a", "", "  ", "b"]`))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, tokens)
	})

	t.Run("Absent", func(t *testing.T) {
		tokens, err := parseTokens(nil)
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("Wrong shape", func(t *testing.T) {
		_, err := parseTokens(json.RawMessage(`{"a":1}`))
		assert.Error(t, err)
		_, err = parseTokens(json.RawMessage(`[1, 2]`))
		assert.Error(t, err)
	})
}
