package dummy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cmdpkg "github.com/gritsenko31/ai-chat-bot/internal/commander"
	"github.com/gritsenko31/ai-chat-bot/internal/history"
	modelpkg "github.com/gritsenko31/ai-chat-bot/internal/model"
)

const backendName = "dummy"

type action struct {
	kind string
	arg  string
}

// parseScript reads a comma separated list of actions: ok, ok:<text>,
// msg:<text>, msgb64:<base64>, err:<kind>, sleep:<ms>.
func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		if token == "ok" {
			actions = append(actions, action{kind: "ok"})
			continue
		}
		kind, arg, found := strings.Cut(token, ":")
		if !found {
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
		switch kind {
		case "ok", "err", "sleep", "msg", "msgb64":
			actions = append(actions, action{kind: kind, arg: arg})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

// next returns the next action; the last one repeats forever.
func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Commander is a scripted chat transport that records what the bot sends.
type Commander struct {
	mu       sync.Mutex
	poll     *scriptRunner
	send     *scriptRunner
	updateID int64
	sent     []Sent
	actions  []Sent
}

// Sent is one recorded outbound message or chat action.
type Sent struct {
	ChatID int64
	Text   string
}

func NewCommander(pollScript, sendScript string) (*Commander, error) {
	poll, err := newRunner(pollScript)
	if err != nil {
		return nil, err
	}
	send, err := newRunner(sendScript)
	if err != nil {
		return nil, err
	}
	return &Commander{poll: poll, send: send, updateID: 1}, nil
}

func (c *Commander) GetUpdates(ctx context.Context, offset int64, timeout int) ([]cmdpkg.Update, error) {
	c.mu.Lock()
	a := c.poll.next()
	c.mu.Unlock()
	switch a.kind {
	case "err":
		return nil, fmt.Errorf("dummy commander error class=%s", emptyAs(a.arg, "command_source_api"))
	case "sleep":
		if err := sleep(ctx, a.arg); err != nil {
			return nil, err
		}
		return nil, nil
	case "msg", "msgb64":
		text, err := decodeText(a)
		if err != nil {
			return nil, fmt.Errorf("dummy commander: %w", err)
		}
		c.mu.Lock()
		c.updateID++
		id := c.updateID
		c.mu.Unlock()
		return []cmdpkg.Update{
			{
				UpdateID: id,
				Message: &cmdpkg.Message{
					MessageID: id,
					From:      &cmdpkg.User{ID: 1, FirstName: "dummy"},
					Chat:      cmdpkg.Chat{ID: 1, Type: "private"},
					Text:      &text,
					Date:      time.Now().Unix(),
				},
			},
		}, nil
	default:
		return nil, nil
	}
}

func (c *Commander) SendMessage(ctx context.Context, chatID int64, text string) error {
	c.mu.Lock()
	a := c.send.next()
	c.mu.Unlock()
	switch a.kind {
	case "err":
		return fmt.Errorf("dummy commander send error class=%s", emptyAs(a.arg, "command_source_api"))
	case "sleep":
		if err := sleep(ctx, a.arg); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.sent = append(c.sent, Sent{ChatID: chatID, Text: text})
	c.mu.Unlock()
	return nil
}

func (c *Commander) SendChatAction(ctx context.Context, chatID int64, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, Sent{ChatID: chatID, Text: action})
	return nil
}

// Sent returns a copy of the messages delivered so far.
func (c *Commander) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// Actions returns a copy of the chat actions sent so far.
func (c *Commander) Actions() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.actions))
	copy(out, c.actions)
	return out
}

// Provider is a scripted completion backend.
type Provider struct {
	mu     sync.Mutex
	model  string
	script *scriptRunner
	calls  []modelpkg.Request
}

func NewProvider(model, script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{model: model, script: runner}, nil
}

// Model returns the configured model label.
func (p *Provider) Model() string {
	return p.model
}

// Calls returns the requests received so far.
func (p *Provider) Calls() []modelpkg.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]modelpkg.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *Provider) Complete(ctx context.Context, req modelpkg.Request) (modelpkg.Response, error) {
	p.mu.Lock()
	a := p.script.next()
	p.calls = append(p.calls, modelpkg.Request{
		SessionID: req.SessionID,
		Turns:     append([]history.Turn(nil), req.Turns...),
	})
	p.mu.Unlock()

	switch a.kind {
	case "err":
		kind := modelpkg.ParseKind(a.arg)
		return modelpkg.Response{}, &modelpkg.UpstreamError{
			Kind:    kind,
			Backend: backendName,
			Err:     errors.New("dummy provider error class=" + emptyAs(a.arg, "provider_api")),
		}
	case "sleep":
		if err := sleep(ctx, a.arg); err != nil {
			return modelpkg.Response{}, modelpkg.Classify(backendName, 0, err)
		}
		return respond("dummy-after-sleep"), nil
	case "msg", "msgb64":
		text, err := decodeText(a)
		if err != nil {
			return modelpkg.Response{}, fmt.Errorf("dummy provider: %w", err)
		}
		return respond(text), nil
	default:
		return respond(emptyAs(a.arg, "dummy-ok")), nil
	}
}

func respond(content string) modelpkg.Response {
	return modelpkg.Response{Content: content, InputTokens: 1, OutputTokens: 1}
}

func decodeText(a action) (string, error) {
	if a.kind != "msgb64" {
		return a.arg, nil
	}
	raw, err := base64.StdEncoding.DecodeString(a.arg)
	if err != nil {
		return "", fmt.Errorf("msgb64 decode failed: %w", err)
	}
	return string(raw), nil
}

func sleep(ctx context.Context, arg string) error {
	ms, _ := strconv.Atoi(arg)
	if ms <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
