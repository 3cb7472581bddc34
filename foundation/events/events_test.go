package events_test

import (
	"testing"

	"github.com/ardanlabs/peerledger/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestSend(t *testing.T) {
	t.Log("Given the need to deliver events to channels and handlers.")
	{
		evts := events.New[string]()

		ch := evts.Acquire("feed")

		var got []string
		evts.Subscribe("handler", func(s string) {
			got = append(got, s)
		})

		evts.Send("block:mined")

		if v := <-ch; v != "block:mined" {
			t.Fatalf("\t%s\tShould receive the event on the channel: %q", failed, v)
		}
		t.Logf("\t%s\tShould receive the event on the channel.", success)

		if len(got) != 1 || got[0] != "block:mined" {
			t.Fatalf("\t%s\tShould call the handler: %v", failed, got)
		}
		t.Logf("\t%s\tShould call the handler.", success)

		evts.Unsubscribe("handler")
		if err := evts.Release("feed"); err != nil {
			t.Fatalf("\t%s\tShould be able to release the channel: %v", failed, err)
		}

		evts.Send("block:validated")
		if len(got) != 1 {
			t.Fatalf("\t%s\tShould not call a removed handler.", failed)
		}
		t.Logf("\t%s\tShould not call a removed handler.", success)

		if err := evts.Release("feed"); err == nil {
			t.Fatalf("\t%s\tShould fail releasing an unknown id.", failed)
		}
		t.Logf("\t%s\tShould fail releasing an unknown id.", success)
	}
}

func TestDropWhenFull(t *testing.T) {
	evts := events.New[int]()
	ch := evts.Acquire("slow")

	for i := range 150 {
		evts.Send(i)
	}

	if len(ch) != 100 {
		t.Fatalf("Should keep only the buffered events, got %d", len(ch))
	}

	evts.Shutdown()
	if _, ok := <-drain(ch); ok {
		t.Fatalf("Should close the channel on shutdown")
	}
}

func drain(ch chan int) chan int {
	for len(ch) > 0 {
		<-ch
	}
	return ch
}
