package udpio

import (
	"net"
	"testing"
	"time"

	"github.com/anssi-fr/lidiode/internal/udpio/simlink"
)

func TestIngestorTransmitterRoundTripOverSimlink(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
	link := simlink.NewLink(addr, 1)

	tx := NewTransmitter(link, addr)
	in := NewIngestor(link, 1500)

	payload := []byte("one fec symbol worth of bytes")
	if err := tx.WriteBatch([][]byte{payload}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	got, err := in.ReadBatch()
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d datagrams, want 1", len(got))
	}
	if string(got[0].Payload) != string(payload) {
		t.Fatalf("payload mismatch: got %q want %q", got[0].Payload, payload)
	}
}

func TestIngestorTransmitterDropsUnderLoss(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
	link := simlink.NewLink(addr, 2)
	link.LossRate = 1.0 // drop everything

	tx := NewTransmitter(link, addr)
	in := NewIngestor(link, 1500)

	if err := tx.WriteBatch([][]byte{[]byte("lost")}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	done := make(chan struct{})
	go func() {
		in.ReadBatch()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("ReadBatch should not have received a dropped datagram")
	case <-time.After(50 * time.Millisecond):
	}
}
