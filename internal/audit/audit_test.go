package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestLedger_AppendAndQuery(t *testing.T) {
	t.Parallel()
	l := NewLedger()

	l.Record(Entry{Event: EventGranted, Kind: "permission", UserID: "u1"})
	l.Record(Entry{Event: EventRevoked, Kind: "permission", UserID: "u2"})
	l.Record(Entry{Event: EventDenied, Kind: "consent", UserID: "u1"})

	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}
	got := l.ForUser("u1")
	if len(got) != 2 {
		t.Fatalf("ForUser(u1) = %d entries, want 2", len(got))
	}
	if got[0].Event != EventGranted || got[1].Event != EventDenied {
		t.Fatalf("entries out of insertion order: %v, %v", got[0].Event, got[1].Event)
	}
	if got := l.ForUser("ghost"); got == nil || len(got) != 0 {
		t.Fatalf("ForUser(ghost) = %v, want empty non-nil", got)
	}
}

func TestLedger_StampsMissingTimestamp(t *testing.T) {
	t.Parallel()
	l := NewLedger()

	l.Record(Entry{Event: EventGranted, UserID: "u1"})
	if got := l.ForUser("u1"); got[0].Timestamp.IsZero() {
		t.Fatalf("entry stored with zero timestamp")
	}
}

func TestLedger_ConcurrentRecord(t *testing.T) {
	t.Parallel()
	l := NewLedger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(Entry{Event: EventChecked, UserID: "u1"})
		}()
	}
	wg.Wait()
	if l.Len() != 50 {
		t.Fatalf("Len = %d after concurrent records, want 50", l.Len())
	}
}

func TestFanout_DeliversToAll(t *testing.T) {
	t.Parallel()
	a, b := NewLedger(), NewLedger()
	f := Fanout{a, b}

	f.Record(Entry{Event: EventGranted, UserID: "u1"})
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("fanout delivery = (%d, %d), want (1, 1)", a.Len(), b.Len())
	}
}

func TestHTTPSink_PostsEntry(t *testing.T) {
	t.Parallel()

	received := make(chan Entry, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Entry
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- e
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL)
	s.Record(Entry{Event: EventRevoked, UserID: "u1", Kind: "consent"})

	select {
	case e := <-received:
		if e.Event != EventRevoked || e.UserID != "u1" {
			t.Fatalf("delivered entry = %+v, want revoked/u1", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sink never delivered the entry")
	}
}

func TestHTTPSink_DeadEndpointDoesNotBlock(t *testing.T) {
	t.Parallel()

	s := NewHTTPSink("http://127.0.0.1:1") // nothing listens here
	done := make(chan struct{})
	go func() {
		s.Record(Entry{Event: EventGranted, UserID: "u1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Record blocked on a dead endpoint")
	}
}

func TestHTTPSink_EmptyURLIsNoop(t *testing.T) {
	t.Parallel()
	(&HTTPSink{}).Record(Entry{Event: EventGranted})
}
