package db

import "testing"

func TestSubtree(t *testing.T) {
	database := testDB(t)

	rootID, _ := LogEvent(database, nil, EventProcessStarted, map[string]any{"role": "bot"})
	exID, _ := LogEvent(database, &rootID, EventExchangeStarted, map[string]any{"request_id": "r1"})
	LogEvent(database, &exID, EventExchangeCompleted, nil)
	LogEvent(database, &exID, EventReplySent, map[string]any{"chunk": 1})
	LogEvent(database, &rootID, EventSessionCleared, nil)
	// Unrelated tree.
	otherID, _ := LogEvent(database, nil, EventProcessStarted, map[string]any{"role": "webhook"})
	LogEvent(database, &otherID, EventExchangeStarted, nil)

	root, err := Subtree(database, rootID)
	if err != nil {
		t.Fatal(err)
	}
	if root.Type != EventProcessStarted || len(root.Children) != 2 {
		t.Fatalf("unexpected root %+v", root)
	}
	ex := root.Children[0]
	if ex.Type != EventExchangeStarted || len(ex.Children) != 2 {
		t.Fatalf("unexpected exchange node %+v", ex)
	}
	if ex.Children[1].Payload["chunk"] != float64(1) {
		t.Fatalf("unexpected payload %v", ex.Children[1].Payload)
	}

	if _, err := Subtree(database, 9999); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestLatestRoot(t *testing.T) {
	database := testDB(t)
	if _, err := LatestRoot(database, ""); err == nil {
		t.Fatal("expected error on empty journal")
	}

	botID, _ := LogEvent(database, nil, EventProcessStarted, map[string]any{"role": "bot"})
	hookID, _ := LogEvent(database, nil, EventProcessStarted, map[string]any{"role": "webhook"})

	got, err := LatestRoot(database, "")
	if err != nil || got != hookID {
		t.Fatalf("expected latest root %d, got %d (%v)", hookID, got, err)
	}
	got, err = LatestRoot(database, "bot")
	if err != nil || got != botID {
		t.Fatalf("expected bot root %d, got %d (%v)", botID, got, err)
	}
}
