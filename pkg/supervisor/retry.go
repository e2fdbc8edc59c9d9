package supervisor

import (
	"fmt"
	"os/exec"

	"github.com/cenkalti/backoff"

	"tracehound/pkg/inferior"
)

// spawnRetries bounds the spawn/attach retry budget. Per §7, spawn failure
// is the one fatal failure mode this supervisor has; a transient exec
// failure (e.g. ETXTBSY racing another process still writing the binary)
// is worth a short retry before giving up.
const spawnRetries = 3

// spawnWithRetry wraps inferior.Spawn in a bounded exponential backoff. Only
// the spawn step is retried — once a pid exists and is ptrace-stopped, any
// further failure is a per-tracee concern handled by the trace loop, not a
// retryable startup condition.
func spawnWithRetry(program string, argv []string, opts inferior.SpawnOptions) (*exec.Cmd, int32, error) {
	var cmd *exec.Cmd
	var pid int32

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), spawnRetries)
	op := func() error {
		c, p, err := inferior.Spawn(program, argv, opts)
		if err != nil {
			return err
		}
		cmd, pid = c, p
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		return nil, 0, fmt.Errorf("spawn %s: %w", program, err)
	}
	return cmd, pid, nil
}
