package telegram

import (
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// recentUpdateLimit bounds how many update IDs are remembered for redelivery checks.
const recentUpdateLimit = 1024

//go:embed update.schema.json
var updateSchema string

// Status is the liveness payload served on GET.
type Status struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Sessions int    `json:"sessions"`
}

// StatusFunc reports the current liveness payload.
type StatusFunc func() Status

// WebhookHandler receives updates pushed by Telegram.
type WebhookHandler struct {
	handler Handler
	status  StatusFunc
	secret  string
	schema  *gojsonschema.Schema
	logger  *slog.Logger
	seen    *recentUpdates
}

// NewWebhookHandler builds the handler. An empty secret disables the header check.
func NewWebhookHandler(handler Handler, status StatusFunc, secret string, logger *slog.Logger) (*WebhookHandler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(updateSchema))
	if err != nil {
		return nil, fmt.Errorf("compile update schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		handler: handler,
		status:  status,
		secret:  secret,
		schema:  schema,
		logger:  logger.With("component", "webhook"),
		seen:    newRecentUpdates(recentUpdateLimit),
	}, nil
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		st := Status{Status: "Bot is running"}
		if h.status != nil {
			st = h.status()
			if st.Status == "" {
				st.Status = "Bot is running"
			}
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodPost:
		h.serveUpdate(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (h *WebhookHandler) serveUpdate(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("rejected update with bad secret", "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
		return
	}
	update, err := h.decode(body)
	if err != nil {
		h.logger.Warn("invalid update", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Telegram redelivers after a non-2xx answer. The exchange behind an
	// accepted update may already be committed, so it runs at most once.
	if !h.seen.add(update.UpdateID) {
		h.logger.Info("duplicate update acknowledged", "update_id", update.UpdateID)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	if err := h.handler.HandleUpdate(r.Context(), update); err != nil {
		h.logger.Error("update handling failed", "update_id", update.UpdateID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *WebhookHandler) decode(body []byte) (Update, error) {
	var update Update
	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return update, fmt.Errorf("malformed update: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return update, errors.New("invalid update: " + strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal(body, &update); err != nil {
		return update, fmt.Errorf("malformed update: %w", err)
	}
	return update, nil
}

type recentUpdates struct {
	mu    sync.Mutex
	limit int
	ids   map[int64]struct{}
	order []int64
}

func newRecentUpdates(limit int) *recentUpdates {
	return &recentUpdates{limit: limit, ids: make(map[int64]struct{}, limit)}
}

// add reports whether id was not seen before, evicting the oldest ID past the limit.
func (r *recentUpdates) add(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	r.order = append(r.order, id)
	if len(r.order) > r.limit {
		delete(r.ids, r.order[0])
		r.order = r.order[1:]
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
