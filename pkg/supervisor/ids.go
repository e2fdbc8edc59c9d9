package supervisor

import (
	"time"

	"github.com/google/uuid"
)

// newRunID mints a fresh identifier for one supervisor invocation's session
// row.
func newRunID() string {
	return uuid.NewString()
}

// wallClock is the timestamp recorded against session store rows.
func wallClock() int64 {
	return time.Now().Unix()
}
