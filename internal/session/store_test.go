package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/gritsenko31/ai-chat-bot/internal/history"
)

func TestStore_GetOrCreateReturnsSameSession(t *testing.T) {
	s := NewStore()
	a := s.GetOrCreate(42)
	b := s.GetOrCreate(42)
	if a != b {
		t.Fatal("expected the same session for the same user")
	}
	if a.ID == "" {
		t.Fatal("expected a session id")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", s.Len())
	}
	if other := s.GetOrCreate(43); other == a {
		t.Fatal("different users must not share a session")
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	s := NewStore()
	if _, ok := s.Clear(7); ok {
		t.Fatal("clearing an absent session should report false")
	}
	if _, ok := s.Get(7); ok {
		t.Fatal("no session expected after clear")
	}

	sess := s.GetOrCreate(7)
	id, ok := s.Clear(7)
	if !ok || id != sess.ID {
		t.Fatalf("unexpected clear result id=%q ok=%v", id, ok)
	}
	if _, ok := s.Clear(7); ok {
		t.Fatal("second clear should be a no-op")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestStore_RecreatedSessionIsFresh(t *testing.T) {
	s := NewStore()
	sess := s.GetOrCreate(1)
	sess.Lock()
	sess.Commit(history.Window{MaxTurns: 20}, history.UserTurn("hi"), history.AssistantTurn("hello"))
	sess.Unlock()
	s.Clear(1)

	fresh := s.GetOrCreate(1)
	fresh.Lock()
	defer fresh.Unlock()
	if fresh.ID == sess.ID {
		t.Fatal("expected a new session id after clear")
	}
	if len(fresh.Snapshot()) != 0 || fresh.MessageCount() != 0 {
		t.Fatal("expected empty session after clear")
	}
}

func TestSession_CommitTrimsWindow(t *testing.T) {
	s := NewStore()
	sess := s.GetOrCreate(1)
	w := history.Window{MaxTurns: 20}

	sess.Lock()
	defer sess.Unlock()
	for i := 1; i <= 25; i++ {
		sess.Commit(w,
			history.UserTurn(fmt.Sprintf("q%d", i)),
			history.AssistantTurn(fmt.Sprintf("a%d", i)),
		)
	}
	turns := sess.Snapshot()
	if len(turns) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(turns))
	}
	if turns[0].Content != "q16" || turns[19].Content != "a25" {
		t.Fatalf("unexpected window bounds: first=%q last=%q", turns[0].Content, turns[19].Content)
	}
	if sess.MessageCount() != 25 {
		t.Fatalf("expected 25 exchanges, got %d", sess.MessageCount())
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	w := history.Window{MaxTurns: 1000}
	var wg sync.WaitGroup
	for u := int64(0); u < 8; u++ {
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(userID int64) {
				defer wg.Done()
				sess := s.GetOrCreate(userID)
				sess.Lock()
				sess.Commit(w, history.UserTurn("x"))
				sess.Unlock()
			}(u)
		}
	}
	wg.Wait()

	if s.Len() != 8 {
		t.Fatalf("expected 8 sessions, got %d", s.Len())
	}
	for u := int64(0); u < 8; u++ {
		sess, ok := s.Get(u)
		if !ok {
			t.Fatalf("missing session %d", u)
		}
		sess.Lock()
		n := len(sess.Snapshot())
		sess.Unlock()
		if n != 25 {
			t.Fatalf("user %d: expected 25 turns, got %d", u, n)
		}
	}
}
