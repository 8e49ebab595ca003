package config

import (
	"fmt"
	"strings"
)

// Messages are the fixed texts the bot sends.
type Messages struct {
	Welcome         string `yaml:"welcome"`
	Help            string `yaml:"help"`
	Cleared         string `yaml:"cleared"`
	RateLimited     string `yaml:"rate_limited"`
	ContextTooLong  string `yaml:"context_too_long"`
	ContentFiltered string `yaml:"content_filtered"`
	NotFound        string `yaml:"not_found"`
	ErrorPrefix     string `yaml:"error_prefix"`
}

// DefaultMessages returns the built-in texts with modelLabel in the welcome.
func DefaultMessages(modelLabel string) Messages {
	return Messages{
		Welcome: fmt.Sprintf(`👋 Hello! I'm an AI bot powered by %s.

📝 I understand context and remember our conversation.

🔧 Commands:
/clear - Clear chat history
/help - Show help

Just send me a message!`, modelLabel),
		Help: `ℹ️ Bot Help:

/start - Start the bot
/clear - Clear conversation history
/help - Show this help

💡 Tip: I remember our conversation context!`,
		Cleared:         "✅ Chat history cleared!",
		RateLimited:     "⚠️ Rate limit exceeded. Please wait a moment and try again.",
		ContextTooLong:  "⚠️ Conversation too long. Use /clear to start fresh.",
		ContentFiltered: "⚠️ Content filtered by safety settings. Try rephrasing your message.",
		NotFound:        "⚠️ Model not found. Check your API access.",
		ErrorPrefix:     "❌ An error occurred: ",
	}
}

// Merge returns m with every non-empty field of override applied.
func (m Messages) Merge(override Messages) Messages {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&m.Welcome, override.Welcome)
	set(&m.Help, override.Help)
	set(&m.Cleared, override.Cleared)
	set(&m.RateLimited, override.RateLimited)
	set(&m.ContextTooLong, override.ContextTooLong)
	set(&m.ContentFiltered, override.ContentFiltered)
	set(&m.NotFound, override.NotFound)
	set(&m.ErrorPrefix, override.ErrorPrefix)
	return m
}

// ModelLabel turns a model identifier into a readable name for the welcome text.
func ModelLabel(model string) string {
	switch {
	case strings.HasPrefix(model, "llama-3.3-70b"):
		return "Llama 3.3 70B via Groq"
	case strings.HasPrefix(model, "claude-"):
		return "Claude (" + model + ")"
	case model == "":
		return "a language model"
	default:
		return model
	}
}
