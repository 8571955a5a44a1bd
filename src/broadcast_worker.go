package main

import (
	"context"
	"log"
)

// broadcastWorker receives readings and fans out to every zone worker whose
// input topic matches. Sends are non-blocking so one stalled worker cannot
// hold up the others.
func broadcastWorker(ctx context.Context, inputChan <-chan Reading, outputs map[string][]chan<- Reading) {
	for {
		select {
		case reading := <-inputChan:
			for i, ch := range outputs[reading.Topic] {
				select {
				case ch <- reading:
				case <-ctx.Done():
					return
				default:
					log.Printf("Warning: zone worker %d for %s channel full, dropping reading\n", i, reading.Topic)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
