package coordinator

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards against goroutine leaks from Watcher/Runner: both
// spawn background goroutines that must exit on Stop, and a leaked one
// here would otherwise only surface as a slow, mysterious CI flake.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
