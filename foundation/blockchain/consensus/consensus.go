// Package consensus implements the peer protocol used to announce, sync and
// validate blocks between nodes over an abstract transport.
package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// DefaultWaitWindow is how long CheckConsensus waits for validation
// responses.
const DefaultWaitWindow = 2 * time.Second

// HandlerFunc processes the data of an inbound message.
type HandlerFunc func(data json.RawMessage)

// Transport represents the behavior required to deliver messages to the
// connected peers. Broadcast is fire and forget, a transport delivers the
// inbound messages to the handler registered for the kind.
type Transport interface {
	Broadcast(kind MessageKind, data json.RawMessage) error
	Handle(kind MessageKind, fn HandlerFunc)
}

// Chain represents the behavior the protocol needs from the local chain.
type Chain interface {
	LatestBlock() database.Block
	Length() int
	GetByHash(hash string) (database.Block, error)
	GetAll() []database.Block
	BlocksAfter(hash string) ([]database.Block, bool)
	CheckCandidate(block database.Block) error
	ProcessPeerBlock(block database.Block) error
}

// =============================================================================

// Config represents the configuration required to run the protocol.
type Config struct {
	NodeID     string
	Chain      Chain
	Transport  Transport
	Threshold  float64       // Zero means DefaultThreshold.
	WaitWindow time.Duration // Zero means DefaultWaitWindow.
	EvHandler  func(v string, args ...any)
}

// Protocol manages the message exchange of one node with its peers.
type Protocol struct {
	nodeID     string
	chain      Chain
	transport  Transport
	threshold  float64
	waitWindow time.Duration
	evHandler  func(v string, args ...any)
	tally      *Tally
}

// New constructs a protocol and registers its handlers with the transport.
func New(cfg Config) (*Protocol, error) {
	if cfg.NodeID == "" {
		return nil, errors.New("node id is required")
	}
	if cfg.Chain == nil || cfg.Transport == nil {
		return nil, errors.New("chain and transport are required")
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %v", cfg.Threshold)
	}
	if cfg.WaitWindow <= 0 {
		cfg.WaitWindow = DefaultWaitWindow
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	p := Protocol{
		nodeID:     cfg.NodeID,
		chain:      cfg.Chain,
		transport:  cfg.Transport,
		threshold:  cfg.Threshold,
		waitWindow: cfg.WaitWindow,
		evHandler:  ev,
		tally:      NewTally(),
	}

	cfg.Transport.Handle(KindNewBlock, p.handleNewBlock)
	cfg.Transport.Handle(KindSyncRequest, p.handleSyncRequest)
	cfg.Transport.Handle(KindSyncResponse, p.handleSyncResponse)
	cfg.Transport.Handle(KindValidateBlock, p.handleValidateBlock)
	cfg.Transport.Handle(KindValidationResponse, p.handleValidationResponse)
	cfg.Transport.Handle(KindConsensusRequest, p.handleReserved(KindConsensusRequest))
	cfg.Transport.Handle(KindConsensusResponse, p.handleReserved(KindConsensusResponse))

	return &p, nil
}

// NodeID returns the id of this node.
func (p *Protocol) NodeID() string {
	return p.nodeID
}

// AnnounceBlock tells the peers a block was added to this chain.
func (p *Protocol) AnnounceBlock(block database.Block) error {
	p.evHandler("consensus: AnnounceBlock: blk[%s]", block.Hash)

	return p.broadcast(KindNewBlock, NewBlockData{
		Hash:   block.Hash,
		NodeID: p.nodeID,
	})
}

// RequestSync asks the peers for the blocks after this chain's tip.
func (p *Protocol) RequestSync() error {
	tip := p.chain.LatestBlock()

	p.evHandler("consensus: RequestSync: tip[%s]", tip.Hash)

	return p.broadcast(KindSyncRequest, SyncRequestData{
		LatestBlockHash: tip.Hash,
		NodeID:          p.nodeID,
	})
}

// RequestValidation asks the peers to validate the block. Earlier results
// for the block are discarded.
func (p *Protocol) RequestValidation(block database.Block) error {
	p.evHandler("consensus: RequestValidation: blk[%s]", block.Hash)

	p.tally.Reset(block.Hash)

	return p.broadcast(KindValidateBlock, ValidateBlockData{
		Block:       block,
		RequesterID: p.nodeID,
	})
}

// CheckConsensus waits the configured window for validation responses and
// then computes the tally for the block hash.
func (p *Protocol) CheckConsensus(ctx context.Context, blockHash string) (Result, error) {
	timer := time.NewTimer(p.waitWindow)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	res := p.Tally(blockHash)

	p.evHandler("consensus: CheckConsensus: blk[%s]: valid[%d]: total[%d]: accepted[%t]", blockHash, res.Valid, res.Total, res.Accepted)

	return res, nil
}

// Tally returns the current tally for the block hash without waiting.
func (p *Protocol) Tally(blockHash string) Result {
	return p.tally.Compute(blockHash, p.threshold)
}

// ImportExternal validates and appends a block received from a peer.
func (p *Protocol) ImportExternal(block database.Block) error {
	return p.chain.ProcessPeerBlock(block)
}

// Validate produces this node's verdict about the block.
func (p *Protocol) Validate(block database.Block) ValidationResult {
	vr := ValidationResult{
		BlockHash:   block.Hash,
		Status:      StatusValid,
		ValidatorID: p.nodeID,
	}

	if err := p.chain.CheckCandidate(block); err != nil {
		vr.Status = StatusInvalid
		vr.Reason = err.Error()
		if re := database.GetReject(err); re != nil {
			vr.Reason = string(re.Reason)
		}
	}

	return vr
}

// =============================================================================

func (p *Protocol) handleNewBlock(data json.RawMessage) {
	var nb NewBlockData
	if err := json.Unmarshal(data, &nb); err != nil {
		p.evHandler("consensus: handleNewBlock: ERROR: %s", err)
		return
	}

	if nb.NodeID == p.nodeID {
		return
	}

	if _, err := p.chain.GetByHash(nb.Hash); err == nil {
		return
	}

	p.evHandler("consensus: handleNewBlock: unknown blk[%s] from node[%s]: requesting sync", nb.Hash, nb.NodeID)

	if err := p.RequestSync(); err != nil {
		p.evHandler("consensus: handleNewBlock: ERROR: %s", err)
	}
}

func (p *Protocol) handleSyncRequest(data json.RawMessage) {
	var req SyncRequestData
	if err := json.Unmarshal(data, &req); err != nil {
		p.evHandler("consensus: handleSyncRequest: ERROR: %s", err)
		return
	}

	if req.NodeID == p.nodeID {
		return
	}

	blocks, found := p.chain.BlocksAfter(req.LatestBlockHash)
	if !found {
		p.evHandler("consensus: handleSyncRequest: node[%s]: unknown blk[%s]: sending full chain", req.NodeID, req.LatestBlockHash)
		blocks = p.chain.GetAll()
	}

	if len(blocks) == 0 {
		p.evHandler("consensus: handleSyncRequest: node[%s]: already synced", req.NodeID)
		return
	}

	resp := SyncResponseData{
		Blocks:       blocks,
		TargetNodeID: req.NodeID,
	}

	if err := p.broadcast(KindSyncResponse, resp); err != nil {
		p.evHandler("consensus: handleSyncRequest: ERROR: %s", err)
	}
}

func (p *Protocol) handleSyncResponse(data json.RawMessage) {
	var resp SyncResponseData
	if err := json.Unmarshal(data, &resp); err != nil {
		p.evHandler("consensus: handleSyncResponse: ERROR: %s", err)
		return
	}

	if resp.TargetNodeID != p.nodeID {
		return
	}

	p.evHandler("consensus: handleSyncResponse: received blocks[%d]", len(resp.Blocks))

	for _, block := range resp.Blocks {
		if _, err := p.chain.GetByHash(block.Hash); err == nil {
			continue
		}

		if err := p.chain.ProcessPeerBlock(block); err != nil {
			p.evHandler("consensus: handleSyncResponse: WARNING: dropping blk[%s]: %s", block.Hash, err)
			continue
		}

		p.evHandler("consensus: handleSyncResponse: imported blk[%s]", block.Hash)
	}
}

func (p *Protocol) handleValidateBlock(data json.RawMessage) {
	var req ValidateBlockData
	if err := json.Unmarshal(data, &req); err != nil {
		p.evHandler("consensus: handleValidateBlock: ERROR: %s", err)
		return
	}

	if req.RequesterID == p.nodeID {
		return
	}

	vr := p.Validate(req.Block)

	p.evHandler("consensus: handleValidateBlock: node[%s]: blk[%s]: status[%s]", req.RequesterID, vr.BlockHash, vr.Status)

	resp := ValidationResponseData{
		Validation:   vr,
		TargetNodeID: req.RequesterID,
	}

	if err := p.broadcast(KindValidationResponse, resp); err != nil {
		p.evHandler("consensus: handleValidateBlock: ERROR: %s", err)
	}
}

func (p *Protocol) handleValidationResponse(data json.RawMessage) {
	var resp ValidationResponseData
	if err := json.Unmarshal(data, &resp); err != nil {
		p.evHandler("consensus: handleValidationResponse: ERROR: %s", err)
		return
	}

	if resp.TargetNodeID != p.nodeID {
		return
	}

	p.tally.Add(resp.Validation)
}

func (p *Protocol) handleReserved(kind MessageKind) HandlerFunc {
	return func(data json.RawMessage) {
		p.evHandler("consensus: %s: ignored reserved message", kind)
	}
}

// broadcast encodes the payload and hands it to the transport.
func (p *Protocol) broadcast(kind MessageKind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", kind, err)
	}

	if err := p.transport.Broadcast(kind, data); err != nil {
		return fmt.Errorf("broadcast %s: %w", kind, err)
	}

	return nil
}
