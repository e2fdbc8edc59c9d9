package supervisor

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the full supervisor contract (§6 CLI surface), whether supplied
// by flags or a config file: (program_path, argv[], cov_descriptor_path,
// trace_output_path, follow_fork, breakpoint_coverage, syscall_trace).
type Config struct {
	Program string   `toml:"program"`
	Args    []string `toml:"args"`

	CovDescriptorPath string `toml:"cov_descriptor_path"`
	TraceOutputPath   string `toml:"trace_output_path"`
	FollowFork        bool   `toml:"follow_fork"`
	BreakpointCoverage bool  `toml:"breakpoint_coverage"`
	SyscallTrace      bool   `toml:"syscall_trace"`

	SyscallTraceOutputPath string `toml:"syscall_trace_output_path"`
	Interactive            bool   `toml:"interactive"`
	SessionDBPath          string `toml:"session_db_path"`
}

// LoadConfigFile reads a TOML config file into a Config. It does no merging
// itself; the cobra layer combines the result with the flags afterward.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
