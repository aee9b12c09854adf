package agent

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for the whole package. The
// runner detaches run goroutines from their requests, so leaks here would
// otherwise go unnoticed until production.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
