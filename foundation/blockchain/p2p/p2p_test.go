package p2p_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/consensus"
	"github.com/ardanlabs/peerledger/foundation/blockchain/p2p"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func receive(t *testing.T, ch chan string) (string, bool) {
	t.Helper()

	select {
	case s := <-ch:
		return s, true
	case <-time.After(5 * time.Second):
		return "", false
	}
}

func TestHub(t *testing.T) {
	t.Log("Given the need to deliver messages between in-process nodes.")
	{
		hub := p2p.NewHub()
		defer hub.Leave("a")
		defer hub.Leave("b")
		defer hub.Leave("c")

		a := hub.Join("a")
		b := hub.Join("b")
		c := hub.Join("c")

		got := make(chan string, 10)
		for name, tr := range map[string]*p2p.HubTransport{"a": a, "b": b, "c": c} {
			tr.Handle(consensus.KindNewBlock, func(data json.RawMessage) {
				got <- name + ":" + string(data)
			})
		}

		if err := a.Broadcast(consensus.KindNewBlock, json.RawMessage(`"x"`)); err != nil {
			t.Fatalf("\t%s\tShould be able to broadcast: %v", failed, err)
		}

		seen := map[string]bool{}
		for range 2 {
			s, ok := receive(t, got)
			if !ok {
				t.Fatalf("\t%s\tShould deliver to the other members.", failed)
			}
			seen[s] = true
		}

		if !seen[`b:"x"`] || !seen[`c:"x"`] {
			t.Fatalf("\t%s\tShould deliver to b and c: %v", failed, seen)
		}
		t.Logf("\t%s\tShould deliver to the other members.", success)

		select {
		case s := <-got:
			t.Fatalf("\t%s\tShould not deliver to the sender: %s", failed, s)
		case <-time.After(50 * time.Millisecond):
		}
		t.Logf("\t%s\tShould not deliver to the sender.", success)
	}
}

func TestWebSocket(t *testing.T) {
	t.Log("Given the need to exchange messages over websockets.")
	{
		disconnected := make(chan string, 1)

		server := p2p.NewWebSocket(p2p.WebSocketConfig{
			NodeID:       "server",
			OnDisconnect: func(host string) { disconnected <- host },
		})

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := server.Accept(w, r, r.URL.Query().Get("host")); err != nil {
				t.Errorf("Should be able to accept: %v", err)
			}
		}))
		defer srv.Close()

		client := p2p.NewWebSocket(p2p.WebSocketConfig{
			NodeID: "client",
			Host:   "127.0.0.1:9999",
		})

		fromClient := make(chan string, 1)
		server.Handle(consensus.KindSyncRequest, func(data json.RawMessage) {
			fromClient <- string(data)
		})

		fromServer := make(chan string, 1)
		client.Handle(consensus.KindSyncResponse, func(data json.RawMessage) {
			fromServer <- string(data)
		})

		host := strings.TrimPrefix(srv.URL, "http://")
		if err := client.Dial(context.Background(), host); err != nil {
			t.Fatalf("\t%s\tShould be able to dial: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to dial.", success)

		if err := client.Broadcast(consensus.KindSyncRequest, json.RawMessage(`{"n":1}`)); err != nil {
			t.Fatalf("\t%s\tShould be able to broadcast: %v", failed, err)
		}

		if s, ok := receive(t, fromClient); !ok || s != `{"n":1}` {
			t.Fatalf("\t%s\tShould deliver to the server: %q", failed, s)
		}
		t.Logf("\t%s\tShould deliver to the server.", success)

		if peers := server.Peers(); len(peers) != 1 || peers[0] != "127.0.0.1:9999" {
			t.Fatalf("\t%s\tShould register the client host: %v", failed, peers)
		}
		t.Logf("\t%s\tShould register the client host.", success)

		if err := server.Broadcast(consensus.KindSyncResponse, json.RawMessage(`{"n":2}`)); err != nil {
			t.Fatalf("\t%s\tShould be able to answer: %v", failed, err)
		}

		if s, ok := receive(t, fromServer); !ok || s != `{"n":2}` {
			t.Fatalf("\t%s\tShould deliver to the client: %q", failed, s)
		}
		t.Logf("\t%s\tShould deliver to the client.", success)

		client.Close()

		if h, ok := receive(t, disconnected); !ok || h != "127.0.0.1:9999" {
			t.Fatalf("\t%s\tShould report the disconnect: %q", failed, h)
		}
		t.Logf("\t%s\tShould report the disconnect.", success)

		server.Close()
	}
}
