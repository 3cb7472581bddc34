package commands

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// Records prints the records of the kind found in the chain.
func Records(args []string, db *database.Database) error {
	kind := database.Kind(args[0])

	records := db.GetTransactionsByType(kind)

	fmt.Printf("Kind: %s  Records: %d\n\n", kind, len(records))

	for i, record := range records {
		payload := string(record.Payload)
		switch {
		case record.IsEncrypted():
			payload = "<encrypted>"
		case !json.Valid(record.Payload):
			payload = "<malformed>"
		}

		fmt.Printf("%d: Signatures: %d/%d  Payload: %s\n", i, len(record.Signatures), record.RequiredSigners, payload)
	}

	return nil
}
