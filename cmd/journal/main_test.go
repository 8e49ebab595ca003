package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gritsenko31/ai-chat-bot/internal/db"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(t.TempDir() + "/journal.db")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.InitSchema(database); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// seedJournal builds:
//
//	process.started (bot)
//	├── exchange.started
//	│   ├── exchange.completed
//	│   └── reply.sent
//	└── command.handled
func seedJournal(t *testing.T, database *sql.DB) *db.Node {
	t.Helper()
	rootID, _ := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{"role": "bot", "pid": 100})
	exID, _ := db.LogEvent(database, &rootID, db.EventExchangeStarted, map[string]any{"request_id": "r-1", "user_id": 42})
	db.LogEvent(database, &exID, db.EventExchangeCompleted, map[string]any{"input_tokens": 12, "output_tokens": 3})
	db.LogEvent(database, &exID, db.EventReplySent, map[string]any{"chunk": 1, "of": 1})
	db.LogEvent(database, &rootID, db.EventCommandHandled, map[string]any{"command": "clear"})

	root, err := db.Subtree(database, rootID)
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func TestPrintTree(t *testing.T) {
	root := seedJournal(t, testDB(t))

	var buf bytes.Buffer
	printTree(&buf, root, "", true, 1, options{})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "process.started") || !strings.Contains(lines[0], "role=bot") {
		t.Errorf("unexpected root line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "├── ") || !strings.Contains(lines[1], "request_id=r-1") {
		t.Errorf("unexpected exchange line %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "│   ├── ") || !strings.Contains(lines[2], "input_tokens=12") {
		t.Errorf("unexpected completed line %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "│   └── ") {
		t.Errorf("unexpected reply line %q", lines[3])
	}
	if !strings.HasPrefix(lines[4], "└── ") || !strings.Contains(lines[4], "command=clear") {
		t.Errorf("unexpected command line %q", lines[4])
	}
}

func TestPrintTree_DepthLimitAndNoPayload(t *testing.T) {
	root := seedJournal(t, testDB(t))

	var buf bytes.Buffer
	printTree(&buf, root, "", true, 1, options{maxDepth: 2, noPayload: true})
	out := buf.String()
	if strings.Contains(out, "reply.sent") {
		t.Fatalf("depth limit not applied:\n%s", out)
	}
	if !strings.Contains(out, "[...]") {
		t.Fatalf("expected truncation marker:\n%s", out)
	}
	if strings.Contains(out, "role=") {
		t.Fatalf("payload should be hidden:\n%s", out)
	}
}

func TestPrintJSON(t *testing.T) {
	root := seedJournal(t, testDB(t))

	var buf bytes.Buffer
	if err := printJSON(&buf, root, options{}); err != nil {
		t.Fatal(err)
	}
	var got jsonEvent
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.EventType != db.EventProcessStarted || len(got.Children) != 2 || len(got.Children[0].Children) != 2 {
		t.Fatalf("unexpected json tree %+v", got)
	}
}

func TestFormatValue(t *testing.T) {
	if got := formatValue(float64(42)); got != "42" {
		t.Errorf("expected 42, got %s", got)
	}
	if got := formatValue(1.5); got != "1.5" {
		t.Errorf("expected 1.5, got %s", got)
	}
	long := strings.Repeat("é", 100)
	if got := formatValue(long); !strings.HasSuffix(got, `..."`) {
		t.Errorf("expected truncated quoted value, got %s", got)
	}
}
