// Package worker implements the background mining and peer updates for
// the blockchain.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
)

// Set of default intervals.
const (
	defaultBlockInterval = 5 * time.Second
	defaultPeerInterval  = time.Minute
)

// =============================================================================

// Config represents the configuration required to run the worker.
type Config struct {
	BlockGenerationInterval time.Duration // How often pending records are mined.
	PeerUpdateInterval      time.Duration // How often PeerUpdate is called.
	ValidatorAddress        string        // Address credited as the validator of mined blocks.
	PeerUpdate              func(ctx context.Context)
	EvHandler               state.EventHandler
}

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state     *state.State
	cfg       Config
	evHandler state.EventHandler

	ctx    context.Context // Cancelled on shutdown.
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	mining chan struct{} // Closed to stop auto mining, nil when not running.
	miners sync.WaitGroup
}

// Run creates a worker, registers the worker with the state package, and
// starts up the peer update process. Auto mining is started separately.
func Run(st *state.State, cfg Config) *Worker {
	if cfg.BlockGenerationInterval <= 0 {
		cfg.BlockGenerationInterval = defaultBlockInterval
	}
	if cfg.PeerUpdateInterval <= 0 {
		cfg.PeerUpdateInterval = defaultPeerInterval
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:     st,
		cfg:       cfg,
		evHandler: ev,
		ctx:       ctx,
		cancel:    cancel,
	}

	// Register this worker with the state package.
	st.Worker = &w

	if cfg.PeerUpdate != nil {

		// Update this node before starting any support G's.
		cfg.PeerUpdate(ctx)

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.peerOperations()
		}()
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work. A mining operation in
// flight is cancelled and its records are returned to the pool.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: signal cancel mining")
	w.cancel()

	w.StopAutoMining()

	w.evHandler("worker: shutdown: terminate goroutines")
	w.wg.Wait()
}

// StartAutoMining starts mining the pending records on every block interval.
// Calling it while auto mining is running does nothing.
func (w *Worker) StartAutoMining() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mining != nil || w.ctx.Err() != nil {
		return
	}

	w.mining = make(chan struct{})

	w.miners.Add(1)
	go func(stop chan struct{}) {
		defer w.miners.Done()
		w.miningOperations(stop)
	}(w.mining)

	w.evHandler("worker: StartAutoMining: interval[%v]", w.cfg.BlockGenerationInterval)
}

// StopAutoMining stops the auto mining. A block being mined is allowed to
// finish before this call returns. Calling it when auto mining is not
// running does nothing.
func (w *Worker) StopAutoMining() {
	w.mu.Lock()
	stop := w.mining
	w.mining = nil
	w.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	w.miners.Wait()

	w.evHandler("worker: StopAutoMining: stopped")
}

// IsAutoMining reports whether auto mining is running.
func (w *Worker) IsAutoMining() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.mining != nil
}
