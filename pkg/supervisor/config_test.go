package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracehound.toml")
	contents := `
program = "/bin/ls"
args = ["-la"]
cov_descriptor_path = "cov.bin"
trace_output_path = "trace.bin"
follow_fork = true
breakpoint_coverage = true
syscall_trace = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/bin/ls", cfg.Program)
	assert.Equal(t, []string{"-la"}, cfg.Args)
	assert.Equal(t, "cov.bin", cfg.CovDescriptorPath)
	assert.Equal(t, "trace.bin", cfg.TraceOutputPath)
	assert.True(t, cfg.FollowFork)
	assert.True(t, cfg.BreakpointCoverage)
	assert.True(t, cfg.SyscallTrace)
}

func TestLoadConfigFileMissingFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
