package tool

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDV7(t *testing.T) {
	id, err := uuid.Parse(GenerateUUIDV7())
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), id.Version())
}

func TestPrefixedID(t *testing.T) {
	a, b := PrefixedID("pi"), PrefixedID("pi")
	require.True(t, strings.HasPrefix(a, "pi_"))
	require.Len(t, a, len("pi_")+32)
	require.NotEqual(t, a, b)
}

func TestRandomHex(t *testing.T) {
	require.Len(t, RandomHex(16), 32)
}
