// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"net/http"

	"github.com/ardanlabs/peerledger/business/core/ledger"
	"github.com/ardanlabs/peerledger/business/web/errs"
	"github.com/ardanlabs/peerledger/foundation/blockchain/consensus"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/p2p"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log       *zap.SugaredLogger
	State     *state.State
	Core      *ledger.Core
	NodeID    string
	PeerSet   *peer.PeerSet
	Transport *p2p.WebSocket
	Protocol  *consensus.Protocol
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.LatestBlock()

	status := peer.PeerStatus{
		NodeID:          h.NodeID,
		LatestBlockHash: latest.Hash,
		Length:          h.State.Length(),
		KnownPeers:      h.PeerSet.Copy(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Peers returns the known peers and the ones with an open connection.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Known     []peer.Peer `json:"known"`
		Connected []string    `json:"connected"`
	}{
		Known:     h.PeerSet.Copy(),
		Connected: h.Transport.Peers(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ConnectPeers dials the provided addresses and reports the outcome per
// address.
func (h Handlers) ConnectPeers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Hosts []string `json:"hosts" validate:"required,min=1"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	res := h.PeerSet.Connect(ctx, req.Hosts, h.Transport.Dial)

	failed := make(map[string]string, len(res.Failed))
	for addr, err := range res.Failed {
		failed[addr] = err.Error()
	}

	resp := struct {
		Connected []peer.Peer       `json:"connected"`
		Skipped   []string          `json:"skipped"`
		Failed    map[string]string `json:"failed"`
	}{
		Connected: res.Connected,
		Skipped:   res.Skipped,
		Failed:    failed,
	}

	if len(res.Connected) > 0 {
		if err := h.Core.Sync(); err != nil {
			h.Log.Infow("connect peers", "traceid", web.GetTraceID(ctx), "WARNING", err)
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Sync asks the peers for the blocks this node is missing.
func (h Handlers) Sync(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Core.Sync(); err != nil {
		return err
	}

	resp := struct {
		Status string `json:"status"`
		Tip    string `json:"tip"`
	}{
		Status: "sync requested",
		Tip:    h.State.LatestBlock().Hash,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// ValidateBlock asks the peers to validate a block and waits for the
// tally.
func (h Handlers) ValidateBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	res, err := h.Core.ValidateWithPeers(ctx, web.Param(r, "hash"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, res, http.StatusOK)
}

// Tally returns the validation results received so far for a block.
func (h Handlers) Tally(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Protocol.Tally(web.Param(r, "hash")), http.StatusOK)
}

// Connect upgrades a peer's request into the peer to peer connection. The
// peer names the host it can be reached at in the query string.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr := r.URL.Query().Get("host")
	if addr == "" {
		addr = r.RemoteAddr
	}

	pr, err := peer.New(addr)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if h.PeerSet.IsSelf(pr.Host) {
		return errs.NewTrusted(peer.ErrSelf, http.StatusBadRequest)
	}

	if err := h.Transport.Accept(w, r, pr.Host); err != nil {
		return err
	}

	if err := h.PeerSet.Add(pr); err != nil && !errors.Is(err, peer.ErrDuplicate) {
		h.Log.Infow("p2p connect", "traceid", web.GetTraceID(ctx), "peer", pr.Host, "WARNING", err)
	}

	web.SetStatusCode(ctx, http.StatusSwitchingProtocols)

	return nil
}
