// Package testing primes the process environment for package tests. Import it for its side
// effects: binaries switch to test mode and every upstream address points at a closed local port.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const testModeEnv = "SALESBOARD_TEST_MODE"

var (
	once sync.Once

	// unreachable upstreams, only applied when the variable is unset
	upstreams = map[string]string{
		"REDIS_ADDR":      "127.0.0.1:0",
		"SOURCE_BASE_URL": "http://127.0.0.1:0",
	}
)

// Prime sets the test environment once per process.
func Prime() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		for key, value := range upstreams {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	Prime()
}

func TestMain(m *stdtesting.M) {
	Prime()
	os.Exit(m.Run())
}
