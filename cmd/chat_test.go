package cmd

import (
	"os"
	"syscall"
	"testing"
)

func TestForwardInterruptsStopsPerSignal(t *testing.T) {
	sigs := make(chan os.Signal, 2)
	sigs <- syscall.SIGINT
	sigs <- syscall.SIGINT
	close(sigs)

	var stops int
	forwardInterrupts(sigs, func() { stops++ })

	if stops != 2 {
		t.Fatalf("stop called %d times, want 2", stops)
	}
}
