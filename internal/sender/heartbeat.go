package sender

import (
	"time"

	"github.com/anssi-fr/lidiode/internal/wire"
)

// runHeartbeat injects a Heartbeat message into toEncoding every interval,
// stopping when stop is closed. It keeps the receiver's reblocker advancing
// (and its idle-link detection satisfied) even when no client data is
// flowing.
func runHeartbeat(interval time.Duration, toEncoding chan<- wire.Message, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			toEncoding <- wire.NewControl(wire.Heartbeat, wire.HeartbeatClientID)
		}
	}
}
