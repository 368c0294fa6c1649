package sender

import (
	"io"
	"log"

	"github.com/anssi-fr/lidiode/internal/wire"
)

// readClient reads client until EOF or error, splitting its byte stream
// into Start/Data/End messages of at most bufSize bytes each and sending
// them to toEncoding. Grounded on the original's client worker: the first
// message of a session is always Start, every subsequent one is Data, and a
// session that produced at least one message gets a trailing End when the
// connection reaches EOF, or a trailing Abort on any other read error.
//
// readClient never propagates client I/O errors upward: a
// single client's failure is isolated to that client and must not disturb
// any other session or the pipeline itself. It returns only to let the
// caller release the client's semaphore slot and log the outcome.
func readClient(clientID wire.ClientID, client io.Reader, bufSize int, compression wire.CompressionMode, toEncoding chan<- wire.Message) {
	buf := make([]byte, bufSize)
	cursor := 0
	transmitted := 0
	isFirst := true

	flush := func() {
		if cursor == 0 {
			return
		}
		typ := wire.Data
		if isFirst {
			typ = wire.Start
		}
		isFirst = false
		payload := wire.CompressPayload(compression, buf[:cursor])
		toEncoding <- wire.Message{ClientID: clientID, Type: typ, Payload: payload}
		transmitted += cursor
		cursor = 0
	}

	for {
		n, err := client.Read(buf[cursor:])
		if n > 0 {
			cursor += n
			if cursor == len(buf) {
				flush()
			}
		}
		if err != nil {
			flush()
			if !isFirst {
				last := wire.End
				if err != io.EOF {
					last = wire.Abort
				}
				toEncoding <- wire.NewControl(last, clientID)
			}
			if err == io.EOF {
				log.Printf("client %x: disconnected, %d bytes transmitted", clientID, transmitted)
			} else {
				log.Printf("client %x: read error after %d bytes: %v", clientID, transmitted, err)
			}
			return
		}
	}
}
