package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tracehound/pkg/session"
)

var sessionsDBFlag string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List past supervisor runs from a session database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionsDBFlag == "" {
			return fmt.Errorf("--db is required")
		}
		return runSessions(sessionsDBFlag)
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show the full detail record for one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionsDBFlag == "" {
			return fmt.Errorf("--db is required")
		}
		return runSessionsShow(sessionsDBFlag, args[0])
	},
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsDBFlag, "db", "", "Path to the session database")
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func runSessions(dbPath string) error {
	store, err := session.Open(session.DefaultConfig(dbPath))
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		return err
	}

	for _, r := range runs {
		started := time.Unix(r.StartedAt, 0)
		status := "running"
		if r.EndedAt.Valid {
			status = fmt.Sprintf("exit=%d", r.ExitCode.Int64)
		}
		fmt.Printf("%s  %-20s %-10s %s  tracees=%d  %s\n",
			r.ID, r.Program, status, humanize.Time(started), r.TraceeCount, r.Args)
	}
	return nil
}

func runSessionsShow(dbPath, runID string) error {
	store, err := session.Open(session.DefaultConfig(dbPath))
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	fmt.Printf("id:          %s\n", r.ID)
	fmt.Printf("program:     %s %s\n", r.Program, r.Args)
	fmt.Printf("coverage:    %s\n", r.CovPath)
	fmt.Printf("trace:       %s\n", r.TracePath)
	fmt.Printf("started:     %s\n", humanize.Time(time.Unix(r.StartedAt, 0)))
	if r.EndedAt.Valid {
		fmt.Printf("ended:       %s\n", humanize.Time(time.Unix(r.EndedAt.Int64, 0)))
		fmt.Printf("exit code:   %d\n", r.ExitCode.Int64)
	} else {
		fmt.Printf("status:      running\n")
	}
	fmt.Printf("tracees:     %d\n", r.TraceeCount)
	return nil
}
