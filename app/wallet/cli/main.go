// This program is a simple wallet that signs records and sends them to a
// ledger node.
package main

import "github.com/ardanlabs/peerledger/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
