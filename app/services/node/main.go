package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/conf/v3/yaml"
	"github.com/ardanlabs/peerledger/app/services/node/handlers"
	"github.com/ardanlabs/peerledger/business/core/ledger"
	"github.com/ardanlabs/peerledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/peerledger/foundation/blockchain/assets"
	assetsdisk "github.com/ardanlabs/peerledger/foundation/blockchain/assets/storage/disk"
	"github.com/ardanlabs/peerledger/foundation/blockchain/blobstore"
	"github.com/ardanlabs/peerledger/foundation/blockchain/cipher"
	"github.com/ardanlabs/peerledger/foundation/blockchain/consensus"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/p2p"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/blockchain/wallet"
	walletdisk "github.com/ardanlabs/peerledger/foundation/blockchain/wallet/storage/disk"
	"github.com/ardanlabs/peerledger/foundation/blockchain/worker"
	"github.com/ardanlabs/peerledger/foundation/events"
	"github.com/ardanlabs/peerledger/foundation/logger"
	"github.com/ardanlabs/peerledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
			AdvertiseHost   string        `conf:"default:127.0.0.1:9080"`
			CORSOrigins     []string      `conf:"default:*"`
		}
		State struct {
			DataPath         string        `conf:"default:zblock/data"`
			GenesisPath      string        `conf:"default:zblock/genesis.json"`
			KeyPath          string        `conf:"default:zblock/accounts/node.ecdsa"`
			ValidatorAddress string        `conf:"help:address credited for mined blocks, defaults to the node key"`
			KnownPeers       []string      `conf:"default:127.0.0.1:9080;127.0.0.1:9180"`
			BlockInterval    time.Duration `conf:"default:10s"`
			PeerInterval     time.Duration `conf:"default:1m"`
			AutoMine         bool          `conf:"default:true"`
			VerifySignatures bool          `conf:"default:true"`
			Strict           bool          `conf:"default:false"`
		}
		Consensus struct {
			Threshold  float64       `conf:"default:0.67"`
			WaitWindow time.Duration `conf:"default:2s"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "peer replicated proof of work ledger node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags. A yaml file named by
	// NODE_CONFIG_FILE is applied before the environment.
	const prefix = "NODE"

	var parsers []conf.Parsers
	if path := os.Getenv("NODE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		parsers = append(parsers, yaml.WithData(data))
	}

	help, err := conf.Parse(prefix, &cfg, parsers...)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for wallet addresses.
	// The names come from the key file names in the accounts folder.
	if err := os.MkdirAll(cfg.NameService.Folder, 0755); err != nil {
		return fmt.Errorf("creating accounts folder: %w", err)
	}

	// Need to load the private key file for the node so the records it
	// produces can be signed. A new key is generated on first start.
	privateKey, err := loadOrCreateKey(cfg.State.KeyPath)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	signer := signature.NewECDSA(privateKey)
	nodeAddress := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()

	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.State.GenesisPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Infow("startup", "status", "genesis file not found, using defaults", "path", cfg.State.GenesisPath)
		gen = genesis.Default()
	case err != nil:
		return fmt.Errorf("loading genesis: %w", err)
	}

	validatorAddress := cfg.State.ValidatorAddress
	if validatorAddress == "" {
		validatorAddress = nodeAddress
	}

	nodeID := uuid.NewString()

	// The blockchain packages accept a function of this signature to allow the
	// application to log. For now, these raw messages are sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New[string]()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// Chain notifications are delivered to the subscribers registered below.
	notes := events.New[state.Notification]()

	blockStore, err := disk.New(filepath.Join(cfg.State.DataPath, "blocks"))
	if err != nil {
		return fmt.Errorf("opening block storage: %w", err)
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		Genesis:          gen,
		Storage:          blockStore,
		VerifySignatures: cfg.State.VerifySignatures,
		Strict:           cfg.State.Strict,
		Notify:           notes.Send,
		EvHandler:        ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// =========================================================================
	// Ledger Support

	act := accounts.New(gen, ev)

	assetStore, err := assetsdisk.New(filepath.Join(cfg.State.DataPath, "assets"))
	if err != nil {
		return fmt.Errorf("opening asset storage: %w", err)
	}

	ast, err := assets.New(assets.Config{
		Store:     assetStore,
		Chain:     st,
		Recorder:  st,
		Signer:    signer,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing asset ledger: %w", err)
	}

	walletStore, err := walletdisk.New(filepath.Join(cfg.State.DataPath, "wallets"))
	if err != nil {
		return fmt.Errorf("opening wallet storage: %w", err)
	}

	wallets, err := wallet.New(wallet.Config{
		Store:     walletStore,
		Recorder:  st,
		Balances:  act,
		Signer:    signer,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing wallet manager: %w", err)
	}

	blobs, err := blobstore.Open(filepath.Join(cfg.State.DataPath, "blobs"), ev)
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}
	defer blobs.Close()

	core, err := ledger.New(ledger.Config{
		State:     st,
		Accounts:  act,
		Assets:    ast,
		Blobs:     blobs,
		Cipher:    cipher.New(),
		Signer:    signer,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing ledger core: %w", err)
	}
	core.Subscribe(notes)

	// =========================================================================
	// Peer Support

	_, port, err := net.SplitHostPort(cfg.Web.PrivateHost)
	if err != nil {
		return fmt.Errorf("parsing private host: %w", err)
	}
	listenPort, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("parsing private port: %w", err)
	}

	localHosts, err := peer.LocalHosts()
	if err != nil {
		log.Infow("startup", "status", "unable to list local addresses", "ERROR", err)
	}

	// A peer set is a collection of known nodes in the network so blocks
	// can be shared.
	peerSet := peer.NewPeerSet(listenPort, localHosts...)

	transport := p2p.NewWebSocket(p2p.WebSocketConfig{
		NodeID: nodeID,
		Host:   cfg.Web.AdvertiseHost,
		OnDisconnect: func(host string) {
			if p, err := peer.New(host); err == nil {
				peerSet.Remove(p)
			}
		},
		EvHandler: ev,
	})
	defer transport.Close()

	protocol, err := consensus.New(consensus.Config{
		NodeID:     nodeID,
		Chain:      st,
		Transport:  transport,
		Threshold:  cfg.Consensus.Threshold,
		WaitWindow: cfg.Consensus.WaitWindow,
		EvHandler:  ev,
	})
	if err != nil {
		return fmt.Errorf("constructing consensus protocol: %w", err)
	}
	core.SetProtocol(protocol)

	peerUpdate := func(ctx context.Context) {
		res := peerSet.Connect(ctx, cfg.State.KnownPeers, transport.Dial)

		for addr, err := range res.Failed {
			if errors.Is(err, peer.ErrSelf) {
				continue
			}
			ev("node: peerUpdate: WARNING: peer[%s]: %s", addr, err)
		}

		if len(res.Connected) > 0 {
			if err := core.Sync(); err != nil {
				ev("node: peerUpdate: WARNING: sync: %s", err)
			}
		}
	}

	// The worker package implements the different workflows such as mining
	// and peer updates. The worker will register itself with the state.
	wrk := worker.Run(st, worker.Config{
		BlockGenerationInterval: cfg.State.BlockInterval,
		PeerUpdateInterval:      cfg.State.PeerInterval,
		ValidatorAddress:        validatorAddress,
		PeerUpdate:              peerUpdate,
		EvHandler:               ev,
	})

	if cfg.State.AutoMine {
		wrk.StartAutoMining()
	}

	log.Infow("startup", "status", "node ready", "nodeid", nodeID, "address", nodeAddress, "validator", validatorAddress, "blocks", st.Length())

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 2)

	muxCfg := handlers.MuxConfig{
		Shutdown:         shutdown,
		Log:              log,
		State:            st,
		Core:             core,
		Assets:           ast,
		Accounts:         act,
		Wallets:          wallets,
		Worker:           wrk,
		NS:               ns,
		Evts:             evts,
		ValidatorAddress: validatorAddress,
		NodeID:           nodeID,
		PeerSet:          peerSet,
		Transport:        transport,
		Protocol:         protocol,
		CORSOrigins:      cfg.Web.CORSOrigins,
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()
		notes.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// loadOrCreateKey loads the node key, generating and saving a new one when
// the file doesn't exist.
func loadOrCreateKey(path string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err == nil {
		return privateKey, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	privateKey, err = crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, fmt.Errorf("saving key: %w", err)
	}

	return privateKey, nil
}
