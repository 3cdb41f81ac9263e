package instance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIDPrefersExplicitValue(t *testing.T) {
	t.Setenv("ETHER_INSTANCE_ID", "  api-7 ")
	require.Equal(t, "api-7", GetID())
}

func TestGetIDFallsBackToHost(t *testing.T) {
	t.Setenv("ETHER_INSTANCE_ID", "")
	require.NotEmpty(t, GetID())
}
