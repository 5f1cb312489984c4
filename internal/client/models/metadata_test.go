package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataFromPairs_OK(t *testing.T) {
	md, err := MetadataFromPairs([]string{"site=S-104", "height=42.5", "night=true", "crew = two"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"site":   "S-104",
		"height": 42.5,
		"night":  true,
		"crew ":  " two",
	}, md)
}

func TestMetadataFromPairs_ErrorOnMalformed(t *testing.T) {
	for _, in := range [][]string{{"justname"}, {"a=b=c"}, {"=value"}} {
		_, err := MetadataFromPairs(in)
		require.ErrorIs(t, err, ErrIncorrectPair, "input %v", in)
	}
}
