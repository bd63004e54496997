package build

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSubLoggerRegistersSubsystem(t *testing.T) {
	logger := NewSubLogger("TEST")
	require.NotNil(t, logger)

	registered, ok := Registry().SubLoggers()["TEST"]
	require.True(t, ok)
	require.Equal(t, logger, registered)
}

func TestParseAndSetDebugLevelsGlobal(t *testing.T) {
	NewSubLogger("GLBL")

	err := ParseAndSetDebugLevels("debug", Registry())
	require.NoError(t, err)
}

func TestParseAndSetDebugLevelsPerSubsystem(t *testing.T) {
	NewSubLogger("PSUB")

	err := ParseAndSetDebugLevels("info,PSUB=trace", Registry())
	require.NoError(t, err)
}

func TestParseAndSetDebugLevelsRejectsUnknownSubsystem(t *testing.T) {
	err := ParseAndSetDebugLevels("info,NOPE=trace", Registry())
	require.Error(t, err)
}

func TestParseAndSetDebugLevelsRejectsInvalidLevel(t *testing.T) {
	err := ParseAndSetDebugLevels("bogus", Registry())
	require.Error(t, err)
}
