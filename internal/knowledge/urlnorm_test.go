package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_LowercasesSchemeAndHost(t *testing.T) {
	got, err := NormalizeURL("HTTPS://Example.COM/Path")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/Path", got)
}

func TestNormalizeURL_StripsFragment(t *testing.T) {
	got, err := NormalizeURL("https://example.com/page#section")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", got)
}

func TestNormalizeURL_RemovesDefaultPort(t *testing.T) {
	got, err := NormalizeURL("https://example.com:443/page")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", got)
}

func TestNormalizeURL_KeepsNonDefaultPort(t *testing.T) {
	got, err := NormalizeURL("https://example.com:8443/page")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:8443/page", got)
}

func TestNormalizeURL_RejectsRelativeURL(t *testing.T) {
	_, err := NormalizeURL("/just/a/path")
	require.Error(t, err)
}
