//go:build !integration

package onboarding

import (
	"testing"

	"go.uber.org/goleak"
)

// NATS client goroutines outlive integration tests, so leak checks only run
// in the unit build.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
