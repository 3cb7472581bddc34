package peer_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Normalize(t *testing.T) {
	type table struct {
		name string
		addr string
		exp  string
		fail bool
	}

	tt := []table{
		{name: "plain", addr: "10.0.0.1:9080", exp: "10.0.0.1:9080"},
		{name: "scheme", addr: "ws://10.0.0.1:9080/v1/peer", exp: "10.0.0.1:9080"},
		{name: "localhost", addr: "LOCALHOST:9080", exp: "127.0.0.1:9080"},
		{name: "empty-host", addr: ":9080", exp: "127.0.0.1:9080"},
		{name: "ipv6", addr: "[::1]:9080", exp: "[::1]:9080"},
		{name: "no-port", addr: "10.0.0.1", fail: true},
		{name: "bad-port", addr: "10.0.0.1:99999", fail: true},
	}

	t.Log("Given the need to normalize peer addresses.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				got, err := peer.Normalize(tst.addr)
				if tst.fail {
					if err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould fail for %q.", failed, testID, tst.addr)
					}
					t.Logf("\t%s\tTest %d:\tShould fail for %q.", success, testID, tst.addr)
					return
				}

				if err != nil || got != tst.exp {
					t.Logf("\t%s\tTest %d:\tgot: %s %v", failed, testID, got, err)
					t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould normalize %q.", failed, testID, tst.addr)
				}
				t.Logf("\t%s\tTest %d:\tShould normalize %q.", success, testID, tst.addr)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_SelfAndDuplicate(t *testing.T) {
	t.Log("Given the need to reject self and duplicate connections.")
	{
		ps := peer.NewPeerSet(9080, "192.168.1.5")

		var dials atomic.Int32
		dial := func(ctx context.Context, host string) error {
			dials.Add(1)
			return nil
		}

		res := ps.Connect(context.Background(), []string{"localhost:9080", "192.168.1.5:9080"}, dial)
		if len(res.Failed) != 2 || dials.Load() != 0 || ps.Len() != 0 {
			t.Fatalf("\t%s\tShould reject this node before dialing: %+v", failed, res)
		}
		t.Logf("\t%s\tShould reject this node before dialing.", success)

		for _, err := range res.Failed {
			if !errors.Is(err, peer.ErrSelf) {
				t.Fatalf("\t%s\tShould report ErrSelf: %v", failed, err)
			}
		}
		t.Logf("\t%s\tShould report ErrSelf.", success)

		res = ps.Connect(context.Background(), []string{"10.0.0.2:9080"}, dial)
		if len(res.Connected) != 1 || ps.Len() != 1 {
			t.Fatalf("\t%s\tShould connect to a new peer.", failed)
		}
		t.Logf("\t%s\tShould connect to a new peer.", success)

		res = ps.Connect(context.Background(), []string{"ws://10.0.0.2:9080"}, dial)
		if len(res.Skipped) != 1 || ps.Len() != 1 || dials.Load() != 1 {
			t.Fatalf("\t%s\tShould treat a second connect as a no-op: %+v", failed, res)
		}
		t.Logf("\t%s\tShould treat a second connect as a no-op.", success)

		if err := ps.Add(peer.Peer{Host: "10.0.0.2:9080"}); !errors.Is(err, peer.ErrDuplicate) {
			t.Fatalf("\t%s\tShould report ErrDuplicate: %v", failed, err)
		}
		t.Logf("\t%s\tShould report ErrDuplicate.", success)

		if ps.IsSelf("127.0.0.1:9081") {
			t.Fatalf("\t%s\tShould not match another port on this machine.", failed)
		}
		t.Logf("\t%s\tShould not match another port on this machine.", success)
	}
}

func Test_ConnectFaultIsolation(t *testing.T) {
	t.Log("Given the need to keep connecting when a candidate fails.")
	{
		ps := peer.NewPeerSet(9080)

		dial := func(ctx context.Context, host string) error {
			if host == "10.0.0.2:9080" {
				return errors.New("connection refused")
			}
			return nil
		}

		addrs := []string{"10.0.0.1:9080", "10.0.0.2:9080", "bad-address", "10.0.0.3:9080", "10.0.0.3:9080"}
		res := ps.Connect(context.Background(), addrs, dial)

		if len(res.Connected) != 2 || res.Connected[0].Host != "10.0.0.1:9080" || res.Connected[1].Host != "10.0.0.3:9080" {
			t.Fatalf("\t%s\tShould connect the healthy candidates: %+v", failed, res.Connected)
		}
		t.Logf("\t%s\tShould connect the healthy candidates.", success)

		if len(res.Failed) != 2 {
			t.Fatalf("\t%s\tShould report two failures: %v", failed, res.Failed)
		}
		t.Logf("\t%s\tShould report two failures.", success)

		if len(res.Skipped) != 1 {
			t.Fatalf("\t%s\tShould skip the repeated candidate.", failed)
		}
		t.Logf("\t%s\tShould skip the repeated candidate.", success)
	}
}
