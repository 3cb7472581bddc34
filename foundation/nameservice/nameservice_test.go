package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/peerledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestLookup(t *testing.T) {
	dir := t.TempDir()

	pk, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
	if err != nil {
		t.Fatalf("Should be able to load the key: %v", err)
	}

	if err := crypto.SaveECDSA(filepath.Join(dir, "kennedy.ecdsa"), pk); err != nil {
		t.Fatalf("Should be able to save the key: %v", err)
	}

	ns, err := nameservice.New(dir)
	if err != nil {
		t.Fatalf("Should be able to build the name service: %v", err)
	}

	if got := ns.Lookup("0xdd6b972ffcc631a62cae1bb9d80b7ff429c8eba4"); got != "kennedy" {
		t.Fatalf("Should resolve the name, got %q", got)
	}

	const unknown = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
	if got := ns.Lookup(unknown); got != unknown {
		t.Fatalf("Should return the address when unknown, got %q", got)
	}
}
