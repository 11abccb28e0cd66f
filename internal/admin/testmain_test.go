package admin_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain runs every test in this package and checks for goroutine
// leaks after they complete, since setupTestServer starts a background
// Core.Run goroutine per test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
