package worker

import "time"

// peerOperations periodically updates this node from its peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	ticker := time.NewTicker(w.cfg.PeerUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.evHandler("worker: peerOperations: update started")
			w.cfg.PeerUpdate(w.ctx)
		case <-w.ctx.Done():
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}
