// Command journal prints the bot's event journal as a tree.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/gritsenko31/ai-chat-bot/internal/db"
)

type options struct {
	maxDepth  int
	noPayload bool
}

func main() {
	var (
		dbPath  string
		eventID int64
		role    string
		jsonOut bool
		opts    options
	)

	flag.StringVar(&dbPath, "db", envOrDefault("JOURNAL_DB_PATH", "./journal.db"), "SQLite journal path")
	flag.Int64Var(&eventID, "id", 0, "show subtree of a specific event ID")
	flag.StringVar(&role, "role", "", "pick the latest root of this role (bot or webhook)")
	flag.IntVar(&opts.maxDepth, "L", 0, "limit display depth (0 = unlimited)")
	flag.BoolVar(&jsonOut, "json", false, "output JSON format")
	flag.BoolVar(&opts.noPayload, "no-payload", false, "hide payload details")
	flag.Parse()

	database, err := db.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("[journal] %v", err)
	}
	defer database.Close()

	rootID := eventID
	if rootID == 0 {
		rootID, err = db.LatestRoot(database, role)
		if err != nil {
			log.Fatalf("[journal] find root: %v", err)
		}
	}
	root, err := db.Subtree(database, rootID)
	if err != nil {
		log.Fatalf("[journal] load subtree: %v", err)
	}

	if jsonOut {
		if err := printJSON(os.Stdout, root, opts); err != nil {
			log.Fatalf("[journal] encode json: %v", err)
		}
		return
	}
	printTree(os.Stdout, root, "", true, 1, opts)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// printTree renders the subtree with box-drawing connectors.
func printTree(w io.Writer, n *db.Node, prefix string, isLast bool, depth int, opts options) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if depth == 1 {
		fmt.Fprintln(w, formatEvent(n, opts.noPayload))
	} else {
		fmt.Fprintln(w, prefix+connector+formatEvent(n, opts.noPayload))
	}

	childPrefix := prefix
	if depth > 1 {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}
	if opts.maxDepth > 0 && depth >= opts.maxDepth {
		if len(n.Children) > 0 {
			fmt.Fprintln(w, childPrefix+"└── [...]")
		}
		return
	}
	for i, child := range n.Children {
		printTree(w, child, childPrefix, i == len(n.Children)-1, depth+1, opts)
	}
}

// formatEvent renders "[id] timestamp  type  key=value ...".
func formatEvent(n *db.Node, noPayload bool) string {
	ts := time.Unix(n.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%d] %s  %s", n.ID, ts, n.Type)
	if noPayload || len(n.Payload) == 0 {
		return line
	}
	keys := make([]string, 0, len(n.Payload))
	for k := range n.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf("  %s=%s", k, formatValue(n.Payload[k]))
	}
	return line
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if len([]rune(val)) > 80 {
			return fmt.Sprintf("%q", string([]rune(val)[:80])+"...")
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

type jsonEvent struct {
	ID        int64          `json:"id"`
	Timestamp int64          `json:"timestamp"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Children  []jsonEvent    `json:"children,omitempty"`
}

func toJSONEvent(n *db.Node, depth int, opts options) jsonEvent {
	je := jsonEvent{ID: n.ID, Timestamp: n.Timestamp, EventType: n.Type}
	if !opts.noPayload {
		je.Payload = n.Payload
	}
	if opts.maxDepth > 0 && depth >= opts.maxDepth {
		return je
	}
	for _, child := range n.Children {
		je.Children = append(je.Children, toJSONEvent(child, depth+1, opts))
	}
	return je
}

func printJSON(w io.Writer, root *db.Node, opts options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSONEvent(root, 1, opts))
}
