package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestLoad(t *testing.T) {
	t.Log("Given the need to load a genesis file.")
	{
		path := filepath.Join(t.TempDir(), "genesis.json")
		content := `{"date":"2024-01-01T00:00:00Z","chain_id":7,"trans_per_block":3,"difficulty":1,"validator_reward":5}`

		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("\t%s\tShould be able to write the file: %v", failed, err)
		}

		gen, err := genesis.Load(path)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the file: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to load the file.", success)

		if gen.ChainID != 7 || gen.TransPerBlock != 3 || gen.Difficulty != 1 || gen.ValidatorReward != 5 {
			t.Fatalf("\t%s\tShould decode the values: %+v", failed, gen)
		}
		t.Logf("\t%s\tShould decode the values.", success)

		if gen.Timestamp() != 1704067200000 {
			t.Fatalf("\t%s\tShould convert the date to millis: %d", failed, gen.Timestamp())
		}
		t.Logf("\t%s\tShould convert the date to millis.", success)

		if gen.Balances == nil {
			t.Fatalf("\t%s\tShould default the balances.", failed)
		}
		t.Logf("\t%s\tShould default the balances.", success)
	}
}
