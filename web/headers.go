package web

import (
	"net/http"
	"strings"
)

// ContentSecurityPolicy only lets frames load from the allowed domains.
func ContentSecurityPolicy(domains []string) string {
	frames := make([]string, 0, len(domains))
	for _, d := range domains {
		frames = append(frames, "https://"+d)
	}
	directives := []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data: https:",
		"frame-src " + strings.Join(frames, " "),
		"connect-src 'self' ws: wss:",
	}
	return strings.Join(directives, "; ")
}

func secureHeaders(csp string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		next.ServeHTTP(w, r)
	})
}

var fallbackReplies = []struct {
	words []string
	text  string
}{
	{[]string{"math", "mathematics", "calculation"},
		"I'd love to help you with math! I can show you educational math resources. Try asking me to 'show math content' or 'open math learning resources'."},
	{[]string{"science", "experiment", "physics", "chemistry", "biology"},
		"Science is fascinating! I can show you educational science content. Ask me to 'display science information' or 'show science resources'."},
	{[]string{"history", "historical", "past"},
		"History helps us understand our world! I can show you historical content. Try saying 'show history content' or 'open historical resources'."},
	{[]string{"read", "reading", "story", "book"},
		"Reading is fundamental! I can show you reading games and resources. Ask me to 'show reading content' or 'open reading games'."},
	{[]string{"hello", "hi", "hey", "greetings"},
		"Hello! I'm your learning assistant. I can help you explore educational content! Try asking me to show you content about math, science, history, or reading."},
	{[]string{"help", "what can you do"},
		"I can help you learn by showing educational content! I can display websites about math, science, history, reading, and more. Just ask me to 'show content about [topic]' or 'open [topic] resources'."},
}

const defaultFallback = "That's interesting! I can show you educational content on many topics. Try asking me to 'show educational content about science' or 'open math learning resources'."

// fallbackReply answers when neither the tutor nor the chatbot can.
func fallbackReply(message string) string {
	lower := strings.ToLower(message)
	for _, f := range fallbackReplies {
		if containsAny(lower, f.words) {
			return f.text
		}
	}
	return defaultFallback
}
