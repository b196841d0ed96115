package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octobrain/octobrain/internal/memory"
	"github.com/octobrain/octobrain/internal/store"
)

func TestStatsCmd_ReportsMemoryCount(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()

	a, err := buildApp(ctx, "")
	require.NoError(t, err)
	_, err = a.Manager.Memorize(ctx, memory.MemorizeInput{Title: "a", Content: "x", MemoryType: store.MemoryTypeCode})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	cmd := newStatsCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Memories:  1")
}
