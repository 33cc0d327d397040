package httpserver

import (
	"os"
	"syscall"
	"time"
)

// ShutdownTimeout controls how long to wait for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
