package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
)

// miningOperations mines the pending records on every tick until the stop
// channel is closed or the worker is shut down.
func (w *Worker) miningOperations(stop chan struct{}) {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	ticker := time.NewTicker(w.cfg.BlockGenerationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runMiningOperation()
		case <-stop:
			w.evHandler("worker: miningOperations: received stop signal")
			return
		case <-w.ctx.Done():
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines one batch of the pending records.
func (w *Worker) runMiningOperation() {
	length := w.state.PendingCount()
	if length == 0 {
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: started: records[%d]", length)
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	t := time.Now()
	block, err := w.state.MineNext(w.ctx, w.cfg.ValidatorAddress)
	duration := time.Since(t)

	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

	if err != nil {
		switch {
		case errors.Is(err, state.ErrNoTransactions):
			w.evHandler("worker: runMiningOperation: MINING: WARNING: no transactions in mempool")
		case errors.Is(err, context.Canceled):
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		}
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: blk[%s]", block.Hash)
}
