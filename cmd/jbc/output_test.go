package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	err := write(dir, "some/path/Counter.yml", []byte(".class public Counter\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "Counter.j"))
	require.NoError(t, err)

	assert.Equal(t, ".class public Counter\n", string(data))
}
