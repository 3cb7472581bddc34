// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/peerledger/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/peerledger/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/peerledger/business/core/ledger"
	"github.com/ardanlabs/peerledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/peerledger/foundation/blockchain/assets"
	"github.com/ardanlabs/peerledger/foundation/blockchain/consensus"
	"github.com/ardanlabs/peerledger/foundation/blockchain/p2p"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/blockchain/wallet"
	"github.com/ardanlabs/peerledger/foundation/blockchain/worker"
	"github.com/ardanlabs/peerledger/foundation/events"
	"github.com/ardanlabs/peerledger/foundation/nameservice"
	"github.com/ardanlabs/peerledger/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log              *zap.SugaredLogger
	State            *state.State
	Core             *ledger.Core
	Accounts         *accounts.Accounts
	Assets           *assets.Ledger
	Wallets          *wallet.Manager
	Worker           *worker.Worker
	NS               *nameservice.NameService
	Evts             *events.Events[string]
	ValidatorAddress string
	NodeID           string
	PeerSet          *peer.PeerSet
	Transport        *p2p.WebSocket
	Protocol         *consensus.Protocol
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:              cfg.Log,
		State:            cfg.State,
		Core:             cfg.Core,
		Accounts:         cfg.Accounts,
		Assets:           cfg.Assets,
		Wallets:          cfg.Wallets,
		Worker:           cfg.Worker,
		NS:               cfg.NS,
		Evts:             cfg.Evts,
		ValidatorAddress: cfg.ValidatorAddress,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)

	app.Handle(http.MethodGet, version, "/chain", pbl.Chain)
	app.Handle(http.MethodGet, version, "/chain/validate", pbl.ValidateChain)
	app.Handle(http.MethodGet, version, "/blocks/latest", pbl.LatestBlock)
	app.Handle(http.MethodGet, version, "/blocks/:hash", pbl.BlockByHash)
	app.Handle(http.MethodGet, version, "/blocks/:hash/proof/:index", pbl.Proof)

	app.Handle(http.MethodGet, version, "/records/:type", pbl.RecordsByType)
	app.Handle(http.MethodPost, version, "/records", pbl.SubmitRecord)
	app.Handle(http.MethodPost, version, "/records/immediate", pbl.AddRecordImmediate)
	app.Handle(http.MethodGet, version, "/pool", pbl.Pool)

	app.Handle(http.MethodPost, version, "/mining/next", pbl.MineNext)
	app.Handle(http.MethodPost, version, "/mining/start", pbl.StartMining)
	app.Handle(http.MethodPost, version, "/mining/stop", pbl.StopMining)
	app.Handle(http.MethodGet, version, "/mining/status", pbl.MiningStatus)

	app.Handle(http.MethodGet, version, "/accounts", pbl.Balances)
	app.Handle(http.MethodGet, version, "/accounts/:address", pbl.Balances)

	app.Handle(http.MethodGet, version, "/wallets", pbl.ListWallets)
	app.Handle(http.MethodPost, version, "/wallets", pbl.CreateWallet)
	app.Handle(http.MethodPost, version, "/wallets/import", pbl.ImportWallet)
	app.Handle(http.MethodGet, version, "/wallets/:address", pbl.QueryWallet)
	app.Handle(http.MethodDelete, version, "/wallets/:address", pbl.RemoveWallet)

	app.Handle(http.MethodGet, version, "/assets", pbl.ListAssets)
	app.Handle(http.MethodPost, version, "/assets", pbl.CreateAsset)
	app.Handle(http.MethodPost, version, "/assets/recompute", pbl.RecomputeAssets)
	app.Handle(http.MethodGet, version, "/assets/balances/:address", pbl.AssetBalances)
	app.Handle(http.MethodGet, version, "/assets/:id", pbl.QueryAsset)
	app.Handle(http.MethodGet, version, "/assets/:id/holders", pbl.AssetHolders)
	app.Handle(http.MethodPost, version, "/assets/:id/mint", pbl.Mint)
	app.Handle(http.MethodPost, version, "/assets/:id/transfer", pbl.Transfer)
	app.Handle(http.MethodPost, version, "/assets/:id/burn", pbl.Burn)

	app.Handle(http.MethodPost, version, "/files", pbl.StoreFile)
	app.Handle(http.MethodGet, version, "/files/:hash", pbl.RetrieveFile)
	app.Handle(http.MethodPost, version, "/encrypted", pbl.StoreEncrypted)
	app.Handle(http.MethodPost, version, "/encrypted/decrypt", pbl.Decrypt)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:       cfg.Log,
		State:     cfg.State,
		Core:      cfg.Core,
		NodeID:    cfg.NodeID,
		PeerSet:   cfg.PeerSet,
		Transport: cfg.Transport,
		Protocol:  cfg.Protocol,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/peers", prv.Peers)
	app.Handle(http.MethodPost, version, "/node/peers", prv.ConnectPeers)
	app.Handle(http.MethodPost, version, "/node/sync", prv.Sync)
	app.Handle(http.MethodPost, version, "/node/validate/:hash", prv.ValidateBlock)
	app.Handle(http.MethodGet, version, "/node/tally/:hash", prv.Tally)
	app.Handle(http.MethodGet, version, "/p2p", prv.Connect)
}
