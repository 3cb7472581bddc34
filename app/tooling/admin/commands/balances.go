// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ardanlabs/peerledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
)

// Balances replays the transactions of the chain and prints the balances.
func Balances(args []string, db *database.Database, gen genesis.Genesis) error {
	var onlyAct string
	if len(args) == 1 {
		onlyAct = args[0]
	}

	act := accounts.New(gen, nil)
	act.Recompute(db.GetTransactionsByType(database.KindTransaction))

	fmt.Printf("LatestBlockHash: %s\n\n", db.LatestBlock().Hash)

	bals := act.Copy()
	addrs := make([]string, 0, len(bals))
	for addr := range bals {
		if onlyAct != "" && !strings.EqualFold(addr, onlyAct) {
			continue
		}
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		fmt.Printf("Account: %s  Balance: %d\n", addr, bals[addr])
	}

	return nil
}
