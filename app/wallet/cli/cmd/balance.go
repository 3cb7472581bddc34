package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

type balance struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latestBlock"`
	Pending     int       `json:"pending"`
	Balances    []balance `json:"balances"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadKey()
	if err != nil {
		log.Fatal(err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
	fmt.Println("For Account:", address)

	var bals balances
	if err := call(http.MethodGet, "/v1/accounts/"+address, nil, &bals); err != nil {
		log.Fatal(err)
	}

	if len(bals.Balances) > 0 {
		fmt.Println(bals.Balances[0].Balance)
	}
}
