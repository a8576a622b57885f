package app

import (
	"os"
	"sync"
)

const testModeEnv = "CONSOLE_TEST_MODE"

// InTestMode reports whether the console should skip runtime side effects such as dialing Redis
// or binding a port. The flag is read once per process.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})
