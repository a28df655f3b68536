package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveOutputPath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"adapter.safetensors", "adapter_zimage.safetensors"},
		{filepath.Join("some", "dir", "adapter.pt"), filepath.Join("some", "dir", "adapter_zimage.safetensors")},
		{filepath.Join("/abs", "adapter.pth"), filepath.Join("/abs", "adapter_zimage.safetensors")},
	}

	for _, tt := range cases {
		assert.Equal(t, tt.want, deriveOutputPath(tt.in))
	}
}

func TestNewCLISubcommands(t *testing.T) {
	root := NewCLI()

	for _, name := range []string{"convert", "batch"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.NotEqual(t, root, sub, "missing %s subcommand", name)
	}
}

func TestBatchFlagDefaults(t *testing.T) {
	root := NewCLI()
	batch, _, err := root.Find([]string{"batch"})
	require.NoError(t, err)

	skip, err := batch.Flags().GetBool("skip-existing")
	require.NoError(t, err)
	assert.True(t, skip)

	concurrency, err := batch.Flags().GetInt("concurrency")
	require.NoError(t, err)
	assert.Equal(t, 1, concurrency)

	out, err := batch.Flags().GetString("out")
	require.NoError(t, err)
	assert.Empty(t, out)
}
