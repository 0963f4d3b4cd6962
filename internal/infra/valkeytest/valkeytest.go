// Package valkeytest starts an in-process Valkey-compatible server for tests.
package valkeytest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
)

// NewClient returns a client connected to a fresh miniredis instance. Both are
// released when the test finishes.
func NewClient(t testing.TB) (valkey.Client, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:   []string{server.Addr()},
		DisableCache:  true,
		ClientSetInfo: valkey.DisableClientSetInfo,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, server
}
