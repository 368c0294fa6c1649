package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/anssi-fr/lidiode/internal/receiver"
)

// watchShutdownSignals blocks until SIGINT or SIGTERM, logs it, stops r and
// exits. A diode has nothing to flush on shutdown beyond draining in-flight
// blocks, so there is no graceful drain phase to wait on.
func watchShutdownSignals(r *receiver.Receiver) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Printf("received %s, shutting down", sig)
	r.Stop()
	os.Exit(0)
}
