package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
)

// Node is an event with its children, as rebuilt from parent_id links.
type Node struct {
	Event
	Children []*Node
}

// LatestRoot returns the id of the most recent process.started event,
// restricted to the given role when role is not empty.
func LatestRoot(database *sql.DB, role string) (int64, error) {
	query := `SELECT id FROM events WHERE event_type = ? ORDER BY id DESC LIMIT 1`
	args := []any{EventProcessStarted}
	if role != "" {
		query = `SELECT id FROM events WHERE event_type = ?
			AND json_extract(payload, '$.role') = ?
			ORDER BY id DESC LIMIT 1`
		args = append(args, role)
	}
	var id int64
	err := database.QueryRow(query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no process.started event found")
	}
	return id, err
}

// Subtree loads rootID and all of its descendants.
func Subtree(database *sql.DB, rootID int64) (*Node, error) {
	rows, err := database.Query(`
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM events WHERE id = ?
			UNION ALL
			SELECT e.id FROM events e JOIN subtree s ON e.parent_id = s.id
		)
		SELECT e.id, e.timestamp, e.parent_id, e.event_type, e.payload
		FROM events e
		WHERE e.id IN (SELECT id FROM subtree)
		ORDER BY e.id ASC
	`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*Node)
	var nodes []*Node
	for rows.Next() {
		var (
			n       Node
			parent  sql.NullInt64
			payload sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Timestamp, &parent, &n.Type, &payload); err != nil {
			return nil, err
		}
		if parent.Valid {
			p := parent.Int64
			n.ParentID = &p
		}
		if payload.Valid && payload.String != "" {
			// Undecodable payloads are shown without fields.
			_ = json.Unmarshal([]byte(payload.String), &n.Payload)
		}
		byID[n.ID] = &n
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if n.ParentID == nil || *n.ParentID == n.ID || n.ID == rootID {
			continue
		}
		if parent, ok := byID[*n.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		}
	}
	for _, n := range nodes {
		sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].ID < n.Children[j].ID })
	}

	root, ok := byID[rootID]
	if !ok {
		return nil, fmt.Errorf("event %d not found", rootID)
	}
	return root, nil
}
