// This program performs administrative tasks for a ledger node.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/peerledger/app/tooling/admin/commands"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
	"github.com/ardanlabs/peerledger/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

var (
	dataPath    string
	genesisPath string
	keyPath     string
)

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
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
	rootCmd := &cobra.Command{
		Use:     "admin",
		Short:   "Administrative tasks for a ledger node",
		Version: build,
	}

	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "zblock/data", "Path to the node data folder.")
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "zblock/genesis.json", "Path to the genesis file.")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Validate every block of the chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChain(log, func(db *database.Database, gen genesis.Genesis) error {
				return commands.Verify(db)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "bals [address]",
		Short: "Print the balances computed from the chain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChain(log, func(db *database.Database, gen genesis.Genesis) error {
				return commands.Balances(args, db, gen)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "records <type>",
		Short: "Print the records of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChain(log, func(db *database.Database, gen genesis.Genesis) error {
				return commands.Records(args, db)
			})
		},
	})

	keystoreCmd := &cobra.Command{
		Use:   "keystore <file>",
		Short: "Convert an encrypted keystore file into a node key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Keystore(args[0], keyPath)
		},
	}
	keystoreCmd.Flags().StringVarP(&keyPath, "key", "k", "zblock/accounts/node.ecdsa", "Path to write the node key.")
	rootCmd.AddCommand(keystoreCmd)

	return rootCmd.Execute()
}

// withChain opens the chain stored in the data folder for the duration of
// the function.
func withChain(log *zap.SugaredLogger, fn func(db *database.Database, gen genesis.Genesis) error) error {
	gen, err := genesis.Load(genesisPath)
	if err != nil {
		log.Infow("genesis", "status", "using defaults", "path", genesisPath, "ERROR", err)
		gen = genesis.Default()
	}

	storage, err := disk.New(filepath.Join(dataPath, "blocks"))
	if err != nil {
		return err
	}

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	db, err := database.Open(database.Config{
		Storage:          storage,
		Difficulty:       int(gen.Difficulty),
		GenesisTimestamp: gen.Timestamp(),
		Verify:           signature.Verify,
		EvHandler:        ev,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db, gen)
}
