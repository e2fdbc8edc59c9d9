package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tracehound/pkg/coverage"
)

var dumpCmd = &cobra.Command{
	Use:   "dump TRACE_FILE",
	Short: "Decode a binary coverage trace file to text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(args[0], os.Stdout)
	},
}

func runDump(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	r, err := coverage.NewTraceReader(f)
	if err != nil {
		return err
	}

	modules := make(map[uint16]string)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if rec.IsModuleDef {
			modules[rec.ModuleID] = rec.ModuleName
			fmt.Fprintf(out, "MODULE id=%d base=%#x name=%s\n", rec.ModuleID, rec.BaseAddr, rec.ModuleName)
			continue
		}
		fmt.Fprintf(out, "HIT    pid=%d module=%s addr=%#x\n", rec.Pid, modules[rec.ModuleID], rec.AbsAddr)
	}
	return nil
}
