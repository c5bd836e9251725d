package main

import (
	"os"

	"github.com/studiowebux/frontloader/internal/logger"
)

// watchSignals turns the first signal into a graceful quit that lets
// in-flight calls finish, and a second one into a hard stop. It returns
// early once done is closed.
func watchSignals(sigs <-chan os.Signal, done <-chan struct{}, quit, hardStop func()) {
	log := logger.Component("run")

	select {
	case <-done:
		return
	case sig := <-sigs:
		log.Info("Quitting after in-flight calls, signal again to stop now", "signal", sig)
		quit()
	}

	select {
	case <-done:
	case sig := <-sigs:
		log.Warn("Stopping immediately", "signal", sig)
		hardStop()
	}
}
