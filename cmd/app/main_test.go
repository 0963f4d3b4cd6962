package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunReportsWiringFailure(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))

	err := run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "wire application")
}
