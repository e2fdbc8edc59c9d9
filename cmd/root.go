package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tracehound/pkg/supervisor"
)

var (
	covDescriptorPath      string
	traceOutputPath        string
	followFork             bool
	breakpointCoverage     bool
	syscallTrace           bool
	syscallTraceOutputPath string
	interactive            bool
	sessionDBPath          string
	configPath             string
	verbose                bool
)

var RootCmd = &cobra.Command{
	Use:   "tracehound PROGRAM [ARGS...]",
	Short: "tracehound: a ptrace-based syscall tracer and coverage collector",
	Long: `tracehound attaches to a program via ptrace, intercepts every syscall
it makes, optionally arms breakpoints at precomputed basic-block addresses,
and records coverage hits to a binary trace file.`,
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logrus.StandardLogger()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		cfg := supervisor.Config{
			Program:                args[0],
			Args:                   args[1:],
			CovDescriptorPath:      covDescriptorPath,
			TraceOutputPath:        traceOutputPath,
			FollowFork:             followFork,
			BreakpointCoverage:     breakpointCoverage,
			SyscallTrace:           syscallTrace,
			SyscallTraceOutputPath: syscallTraceOutputPath,
			Interactive:            interactive,
			SessionDBPath:          sessionDBPath,
		}

		if configPath != "" {
			fileCfg, err := supervisor.LoadConfigFile(configPath)
			if err != nil {
				return err
			}
			cfg = mergeFileConfig(cfg, fileCfg, cmd)
		}

		sup, err := supervisor.New(cfg, logger)
		if err != nil {
			return err
		}
		exitStatus, err := sup.Run()
		if err != nil {
			return err
		}
		if exitStatus != 0 {
			os.Exit(exitStatus)
		}
		return nil
	},
}

// mergeFileConfig lets config-file values fill in flags the user didn't
// pass explicitly on the command line; an explicit flag always wins. A
// string is taken from the file only when non-empty and a boolean only when
// true, so the file cannot switch a flag off; program, args and interactive
// are never taken from the file.
func mergeFileConfig(flags supervisor.Config, file supervisor.Config, cmd *cobra.Command) supervisor.Config {
	out := flags
	if !cmd.Flags().Changed("cov") && file.CovDescriptorPath != "" {
		out.CovDescriptorPath = file.CovDescriptorPath
	}
	if !cmd.Flags().Changed("trace-out") && file.TraceOutputPath != "" {
		out.TraceOutputPath = file.TraceOutputPath
	}
	if !cmd.Flags().Changed("follow-fork") && file.FollowFork {
		out.FollowFork = file.FollowFork
	}
	if !cmd.Flags().Changed("bp-coverage") && file.BreakpointCoverage {
		out.BreakpointCoverage = file.BreakpointCoverage
	}
	if !cmd.Flags().Changed("syscall-trace") && file.SyscallTrace {
		out.SyscallTrace = file.SyscallTrace
	}
	if !cmd.Flags().Changed("syscall-trace-out") && file.SyscallTraceOutputPath != "" {
		out.SyscallTraceOutputPath = file.SyscallTraceOutputPath
	}
	if !cmd.Flags().Changed("session-db") && file.SessionDBPath != "" {
		out.SessionDBPath = file.SessionDBPath
	}
	return out
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.Flags().StringVar(&covDescriptorPath, "cov", "", "Path to a binary coverage descriptor file")
	RootCmd.Flags().StringVar(&traceOutputPath, "trace-out", "", "Path to write the binary coverage trace (required with --bp-coverage)")
	RootCmd.Flags().BoolVar(&followFork, "follow-fork", true, "Trace children created by fork/clone/vfork")
	RootCmd.Flags().BoolVar(&breakpointCoverage, "bp-coverage", false, "Enable breakpoint-based coverage collection from --cov")
	RootCmd.Flags().BoolVar(&syscallTrace, "syscall-trace", false, "Enable syscall enter/exit tracing")
	RootCmd.Flags().StringVar(&syscallTraceOutputPath, "syscall-trace-out", "", "Path for the syscall trace text stream (default: stderr)")
	RootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the traced program attached to a PTY")
	RootCmd.Flags().StringVar(&sessionDBPath, "session-db", "", "Path to a SQLite run-history database")
	RootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	RootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level logging")

	RootCmd.AddCommand(dumpCmd)
	RootCmd.AddCommand(sessionsCmd)
}
