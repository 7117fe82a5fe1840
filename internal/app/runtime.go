package app

import (
	"os"
	"sync/atomic"
)

var testMode atomic.Bool

func init() {
	if os.Getenv("IRIS_TEST_MODE") == "1" {
		testMode.Store(true)
	}
}

// TestMode reports whether relaxed test-only behavior is enabled.
// Used to soften rate limits and cookie flags in integration runs.
func TestMode() bool {
	return testMode.Load()
}
