package web

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultAllowedDomains are the sites the chat page may show in its frame.
var DefaultAllowedDomains = []string{
	"en.wikipedia.org",
	"simple.wikipedia.org",
	"www.khanacademy.org",
	"education.nationalgeographic.org",
	"www.mathplayground.com",
	"www.ixl.com",
	"www.abcya.com",
	"www.funbrain.com",
	"pbskids.org",
	"www.starfall.com",
	"www.education.com",
	"www.coolmath4kids.com",
	"www.multiplication.com",
	"www.mathgames.com",
	"www.teachingchannel.org",
	"www.commoncore.org",
}

var urlIntentKeywords = []string{
	"show me", "show", "open", "visit", "go to", "display", "load",
	"educational content", "learning resource", "website",
	"information about", "learn more", "explore",
}

// checked in order, so "math" wins over "mathematics"
var topicEmbeds = []struct {
	keyword string
	embed   Embed
}{
	{"science", Embed{"https://simple.wikipedia.org/wiki/Science", "Science - Simple Wikipedia"}},
	{"math", Embed{"https://www.khanacademy.org/math", "Math - Khan Academy"}},
	{"mathematics", Embed{"https://www.khanacademy.org/math", "Mathematics - Khan Academy"}},
	{"history", Embed{"https://simple.wikipedia.org/wiki/History", "History - Simple Wikipedia"}},
	{"geography", Embed{"https://education.nationalgeographic.org/", "Geography Education - National Geographic"}},
	{"animal", Embed{"https://simple.wikipedia.org/wiki/Animal", "Animals - Simple Wikipedia"}},
	{"space", Embed{"https://simple.wikipedia.org/wiki/Space", "Space - Simple Wikipedia"}},
	{"ocean", Embed{"https://education.nationalgeographic.org/resource/ocean/", "Ocean Education - National Geographic"}},
	{"reading", Embed{"https://www.starfall.com/", "Reading Games - Starfall"}},
	{"spelling", Embed{"https://www.abcya.com/games/spelling", "Spelling Games - ABCya"}},
}

var defaultEmbed = Embed{"https://simple.wikipedia.org/wiki/Education", "Education - Simple Wikipedia"}

var urlRe = regexp.MustCompile(`https?://[^\s]+`)

// Embed is a page the chat client should open in its frame.
type Embed struct {
	URL   string `json:"embed_url"`
	Title string `json:"embed_title"`
}

// AllowList decides which sites may be embedded.
type AllowList struct {
	domains []string
	clean   map[string]bool
}

func NewAllowList(domains []string) *AllowList {
	a := &AllowList{
		domains: append([]string(nil), domains...),
		clean:   make(map[string]bool, len(domains)),
	}
	for _, d := range domains {
		a.clean[stripWWW(strings.ToLower(d))] = true
	}
	return a
}

func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

func (a *AllowList) Domains() []string {
	return a.domains
}

// Sanitize forces https and returns "" for anything unparsable or off the list.
func (a *AllowList) Sanitize(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	u.Scheme = "https"
	if !a.clean[stripWWW(strings.ToLower(u.Hostname()))] {
		return ""
	}
	return u.String()
}

func (a *AllowList) Allowed(raw string) bool {
	return a.Sanitize(raw) != ""
}

// Find looks for a page to embed: an allowed link in the message first,
// then a topic page when the user asks to see something.
func (a *AllowList) Find(message string) (Embed, bool) {
	for _, raw := range urlRe.FindAllString(message, -1) {
		raw = strings.TrimRight(raw, ".,!?;:)'\"")
		if safe := a.Sanitize(raw); safe != "" {
			u, _ := url.Parse(safe)
			return Embed{URL: safe, Title: "Educational Content - " + u.Host}, true
		}
	}

	lower := strings.ToLower(message)
	if !containsAny(lower, urlIntentKeywords) {
		return Embed{}, false
	}
	for _, t := range topicEmbeds {
		if strings.Contains(lower, t.keyword) && a.Allowed(t.embed.URL) {
			return t.embed, true
		}
	}
	if containsAny(lower, []string{"show", "open", "display", "educational"}) && a.Allowed(defaultEmbed.URL) {
		return defaultEmbed, true
	}
	return Embed{}, false
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
