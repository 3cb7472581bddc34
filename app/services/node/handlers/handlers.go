// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/ardanlabs/peerledger/app/services/node/handlers/debug/checkgrp"
	v1 "github.com/ardanlabs/peerledger/app/services/node/handlers/v1"
	"github.com/ardanlabs/peerledger/business/core/ledger"
	"github.com/ardanlabs/peerledger/business/web/mid"
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

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown         chan os.Signal
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
	CORSOrigins      []string
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors(cfg.CORSOrigins...),
		mid.Panics(),
	)

	// Answer CORS 'OPTIONS' preflight requests for every route.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h)

	// Load the v1 routes.
	v1.PublicRoutes(app, config(cfg))

	return app
}

// PrivateMux constructs a http.Handler with all application routes defined.
func PrivateMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Panics(),
	)

	// Load the v1 routes.
	v1.PrivateRoutes(app, config(cfg))

	return app
}

func config(cfg MuxConfig) v1.Config {
	return v1.Config{
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
		NodeID:           cfg.NodeID,
		PeerSet:          cfg.PeerSet,
		Transport:        cfg.Transport,
		Protocol:         cfg.Protocol,
	}
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service. This bypassing the use of the
// DefaultServerMux. Using the DefaultServerMux would be a security risk since
// a dependency could inject a handler into our service without us knowing it.
func DebugMux(build string, log *zap.SugaredLogger, chain checkgrp.Chain) http.Handler {
	mux := DebugStandardLibraryMux()

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
		Chain: chain,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}
