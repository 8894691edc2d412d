package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQuestion_FromCommandInput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader("  Apa itu e-Faktur?\n"))

	q, err := readQuestion(cmd)
	require.NoError(t, err)
	assert.Equal(t, "Apa itu e-Faktur?", q)
}

func TestRootCmd_NoQuestion(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader("   \n"))
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no question given")
}
