// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ardanlabs/peerledger/business/core/ledger"
	"github.com/ardanlabs/peerledger/business/web/errs"
	"github.com/ardanlabs/peerledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/peerledger/foundation/blockchain/assets"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/blockchain/wallet"
	"github.com/ardanlabs/peerledger/foundation/blockchain/worker"
	"github.com/ardanlabs/peerledger/foundation/events"
	"github.com/ardanlabs/peerledger/foundation/nameservice"
	"github.com/ardanlabs/peerledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log              *zap.SugaredLogger
	State            *state.State
	Core             *ledger.Core
	Accounts         *accounts.Accounts
	Assets           *assets.Ledger
	Wallets          *wallet.Manager
	Worker           *worker.Worker
	NS               *nameservice.NameService
	WS               websocket.Upgrader
	Evts             *events.Events[string]
	ValidatorAddress string
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Genesis(), http.StatusOK)
}

// =============================================================================

// Chain returns the full chain.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.GetAll()

	ch := chain{
		Length:     len(blocks),
		Difficulty: h.State.Difficulty(),
		Valid:      h.State.IsValid(),
		Blocks:     blocks,
	}

	return web.Respond(ctx, w, ch, http.StatusOK)
}

// ValidateChain walks the chain and reports the first broken link.
func (h Handlers) ValidateChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Valid  bool   `json:"valid"`
		Length int    `json:"length"`
		Error  string `json:"error,omitempty"`
	}{
		Valid:  true,
		Length: h.State.Length(),
	}

	if err := h.State.Validate(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// LatestBlock returns the tip of the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.LatestBlock(), http.StatusOK)
}

// BlockByHash returns the block with the hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.GetByHash(web.Param(r, "hash"))
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// Proof returns the merkle proof of a record inside a block.
func (h Handlers) Proof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.Atoi(web.Param(r, "index"))
	if err != nil {
		return errs.NewTrusted(errors.New("index must be a number"), http.StatusBadRequest)
	}

	proof, err := h.Core.Proof(web.Param(r, "hash"), index)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return trusted(err)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, proof, http.StatusOK)
}

// =============================================================================

// RecordsByType returns the records of the kind found in the chain.
func (h Handlers) RecordsByType(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	records := h.State.GetTransactionsByType(database.Kind(web.Param(r, "type")))
	if records == nil {
		records = []database.Record{}
	}

	return web.Respond(ctx, w, records, http.StatusOK)
}

// SubmitRecord adds a signed record to the pool.
func (h Handlers) SubmitRecord(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var record database.Record
	if err := web.Decode(r, &record); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit record", "traceid", v.TraceID, "type", record.Type, "signatures", len(record.Signatures))

	n, err := h.Core.SubmitRecord(record)
	if err != nil {
		return trusted(err)
	}

	resp := submitted{
		Status:  "record added to pool",
		Pending: n,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// AddRecordImmediate mines a signed record into its own block.
func (h Handlers) AddRecordImmediate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var record database.Record
	if err := web.Decode(r, &record); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, err := h.Core.AddRecordImmediate(ctx, record)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, block, http.StatusCreated)
}

// Pool returns the records waiting to be mined.
func (h Handlers) Pool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	records := h.State.PendingRecords()

	p := pool{
		Pending: len(records),
		Records: records,
	}

	return web.Respond(ctx, w, p, http.StatusOK)
}

// =============================================================================

// MineNext mines the pending records into a block right away.
func (h Handlers) MineNext(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.MineNext(ctx, h.ValidatorAddress)
	if err != nil {
		if errors.Is(err, state.ErrNoTransactions) {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	return web.Respond(ctx, w, block, http.StatusCreated)
}

// StartMining starts the periodic mining of the pool.
func (h Handlers) StartMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Worker.StartAutoMining()
	return h.MiningStatus(ctx, w, r)
}

// StopMining stops the periodic mining. A block being mined is finished.
func (h Handlers) StopMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Worker.StopAutoMining()
	return h.MiningStatus(ctx, w, r)
}

// MiningStatus reports whether periodic mining is running.
func (h Handlers) MiningStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	m := mining{
		AutoMining: h.Worker.IsAutoMining(),
		Pending:    h.State.PendingCount(),
		Validator:  h.ValidatorAddress,
	}

	return web.Respond(ctx, w, m, http.StatusOK)
}

// =============================================================================

// Balances returns the native balances of every account, or of the
// account named in the path.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var bals []balance

	switch address := web.Param(r, "address"); address {
	case "":
		for addr, amount := range h.Accounts.Copy() {
			bals = append(bals, balance{
				Address: addr,
				Name:    h.NS.Lookup(addr),
				Balance: amount,
			})
		}
		sort.Slice(bals, func(i, j int) bool { return bals[i].Address < bals[j].Address })

	default:
		addr, err := wallet.NormalizeAddress(address)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		bals = append(bals, balance{
			Address: addr,
			Name:    h.NS.Lookup(addr),
			Balance: h.Accounts.Balance(addr),
		})
	}

	resp := balances{
		LatestBlock: h.State.LatestBlock().Hash,
		Pending:     h.State.PendingCount(),
		Balances:    bals,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// trusted maps the errors of the ledger packages to the status the client
// should see. Anything else is left as an internal error.
func trusted(err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, assets.ErrAssetNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, ledger.ErrFileNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)

	case database.IsReject(err):
		return errs.NewTrusted(err, http.StatusNotAcceptable)

	case errors.Is(err, wallet.ErrExists),
		errors.Is(err, assets.ErrAssetExists):
		return errs.NewTrusted(err, http.StatusConflict)

	case assets.IsLedgerError(err),
		errors.Is(err, wallet.ErrInvalidAddress),
		errors.Is(err, ledger.ErrBadRecord):
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return err
}
