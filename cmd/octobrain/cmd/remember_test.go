package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRememberCmd_FindsAMemorizedEntry(t *testing.T) {
	chdirTemp(t)

	memCmd := newMemorizeCmd()
	memCmd.SetOut(&bytes.Buffer{})
	memCmd.SetArgs([]string{"caching strategy", "we use an LRU cache for embeddings"})
	require.NoError(t, memCmd.Execute())

	cmd := newRememberCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"caching strategy"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "caching strategy")
}

func TestRememberCmd_Explain_PrintsBreakdown(t *testing.T) {
	chdirTemp(t)

	memCmd := newMemorizeCmd()
	memCmd.SetOut(&bytes.Buffer{})
	memCmd.SetArgs([]string{"caching strategy", "we use an LRU cache for embeddings"})
	require.NoError(t, memCmd.Execute())

	cmd := newRememberCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--explain", "caching strategy"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "dense=")
	assert.Contains(t, buf.String(), "lexical=")
}

func TestRememberCmd_NoMatches_PrintsMessage(t *testing.T) {
	chdirTemp(t)

	cmd := newRememberCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"anything at all"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "no matching memories")
}
