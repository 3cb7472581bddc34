package cmd

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount uint64
	fee    uint64
	memo   string
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address to send to.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Fee to pay.")
	sendCmd.Flags().StringVarP(&memo, "memo", "m", "", "Memo for the transaction.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadKey()
	if err != nil {
		log.Fatal(err)
	}

	tx := accounts.Tx{
		From:      crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		To:        to,
		Amount:    amount,
		Fee:       fee,
		Timestamp: time.Now().UnixMilli(),
		Memo:      memo,
	}

	record, err := accounts.NewRecord(tx, signature.NewECDSA(privateKey))
	if err != nil {
		log.Fatal(err)
	}

	var resp struct {
		Status  string `json:"status"`
		Pending int    `json:"pending"`
	}
	if err := call(http.MethodPost, "/v1/records", record, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s: pending[%d]\n", resp.Status, resp.Pending)
}
