package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowListSanitize(t *testing.T) {
	a := NewAllowList(DefaultAllowedDomains)

	assert.Equal(t, "https://pbskids.org/games", a.Sanitize("http://pbskids.org/games"))
	assert.Equal(t, "https://khanacademy.org/math", a.Sanitize("https://khanacademy.org/math"))
	assert.Equal(t, "https://www.starfall.com/", a.Sanitize("www.starfall.com/"))
	assert.Equal(t, "", a.Sanitize("https://example.com/"))
	assert.Equal(t, "", a.Sanitize("https://pbskids.org.evil.com/"))
	assert.False(t, a.Allowed("https://"))
}

func TestFindEmbed(t *testing.T) {
	a := NewAllowList(DefaultAllowedDomains)

	tests := []struct {
		msg   string
		want  Embed
		found bool
	}{
		{"look at https://simple.wikipedia.org/wiki/Frog.", Embed{"https://simple.wikipedia.org/wiki/Frog", "Educational Content - simple.wikipedia.org"}, true},
		{"show me math", Embed{"https://www.khanacademy.org/math", "Math - Khan Academy"}, true},
		{"can you display mathematics", Embed{"https://www.khanacademy.org/math", "Math - Khan Academy"}, true},
		{"I want to explore space", Embed{"https://simple.wikipedia.org/wiki/Space", "Space - Simple Wikipedia"}, true},
		{"open something fun", defaultEmbed, true},
		{"show me https://example.com/", defaultEmbed, true},
		{"tell me about math", Embed{}, false},
		{"explore", Embed{}, false},
	}
	for _, tt := range tests {
		got, ok := a.Find(tt.msg)
		assert.Equal(t, tt.found, ok, tt.msg)
		assert.Equal(t, tt.want, got, tt.msg)
	}
}

func TestFindSkipsTopicsOffTheList(t *testing.T) {
	a := NewAllowList([]string{"www.starfall.com"})

	got, ok := a.Find("show me reading games")
	assert.True(t, ok)
	assert.Equal(t, "https://www.starfall.com/", got.URL)

	_, ok = a.Find("show me math")
	assert.False(t, ok)
}

func TestFallbackReply(t *testing.T) {
	assert.Contains(t, fallbackReply("Let's do an EXPERIMENT"), "Science is fascinating!")
	assert.Contains(t, fallbackReply("what can you do"), "I can help you learn")
	assert.Equal(t, defaultFallback, fallbackReply("purple"))
}
