package mnemonic

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedFromMnemonicMatchesAliceVector(t *testing.T) {
	words := strings.Fields(
		"response seminar brave tip suit recall often sound stick owner lottery motion",
	)
	require.True(t, Validate(words))

	seed := SeedFromMnemonic(words, "")
	want, err := hex.DecodeString(
		"64dca76abc9c6f0cf3d212d248c380c4622c8f93b2c425ec6a5567fd5db57e1" +
			"0d3e6f94a2f6af4ac2edb8998072aad92098db73558c323777abf5bd1082d970a",
	)
	require.NoError(t, err)
	require.Equal(t, want, seed)
}

func TestGenerateProducesTwentyFourValidWords(t *testing.T) {
	words, err := Generate()
	require.NoError(t, err)
	require.Len(t, words, 24)
	require.True(t, Validate(words))
}

func TestValidateRejectsBadChecksum(t *testing.T) {
	words, err := Generate()
	require.NoError(t, err)

	// Flipping the last word almost certainly breaks the checksum.
	if words[len(words)-1] == "zoo" {
		words[len(words)-1] = "zebra"
	} else {
		words[len(words)-1] = "zoo"
	}
	require.False(t, Validate(words))
}
