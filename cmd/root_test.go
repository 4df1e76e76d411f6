package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platescale/platescale/internal/app"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := RootCommand(app.NewContext())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  console:\n    enabled: false\n"), 0o600))
	return path
}

func TestVersionCommand_SkipsSetup(t *testing.T) {
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "platescale unknown")
}

func TestReferenceCommand(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t), "reference")
	require.NoError(t, err)
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "pizza")
	assert.Contains(t, out, "fill fraction")
}

func TestEstimateCommand_MissingImage(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "estimate", filepath.Join(t.TempDir(), "absent.jpg"))
	require.Error(t, err)
}

func TestEstimateCommand_RequiresImageArgument(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "estimate")
	require.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "reference")
	require.Error(t, err)
}
