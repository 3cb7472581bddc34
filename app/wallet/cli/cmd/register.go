package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var (
	label string
	imprt bool
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the wallet with the node",
	Run:   registerRun,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVarP(&label, "label", "l", "", "Label for the wallet.")
	registerCmd.Flags().BoolVarP(&imprt, "import", "i", false, "Register as an imported wallet.")
}

func registerRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadKey()
	if err != nil {
		log.Fatal(err)
	}

	req := struct {
		PublicKey string `json:"publicKey"`
		Label     string `json:"label"`
	}{
		PublicKey: signature.NewECDSA(privateKey).PublicKey(),
		Label:     label,
	}

	path := "/v1/wallets"
	if imprt {
		path += "/import"
	}

	var resp struct {
		Address string `json:"address"`
		Balance uint64 `json:"balance"`
	}
	if err := call(http.MethodPost, path, req, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Registered: %s  Balance: %d\n", resp.Address, resp.Balance)
}
