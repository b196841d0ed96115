package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorize_NonTerminalWriter_ReturnsUnchanged(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.Equal(t, "0.950", colorScore(buf, 0.95))
}

func TestIsTerminal_NonFileWriter_ReturnsFalse(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
