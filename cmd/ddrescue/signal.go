package main

import (
	"github.com/mattkeenan/ddrescuego/pkg"
)

// setupSignalHandler arms the interrupt latch the engine polls once per
// iteration. Unlike a "graceful shutdown channel", this never itself
// terminates the process: SignaledExit does that, from inside the
// engine's own flush-and-exit path, after the mapfile has been saved.
func setupSignalHandler() {
	ddrescue.SetSignals()
}
