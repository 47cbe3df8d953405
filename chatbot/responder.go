// Package chatbot is the child-facing side of the relay: an educational
// responder with content filtering, wrapped around an optional dialogue model.
package chatbot

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"

	"teacher1/chatbot/generator"

	log "github.com/sirupsen/logrus"
)

const (
	TopicMath     = "math"
	TopicReading  = "reading"
	TopicSpelling = "spelling"
	TopicNumbers  = "numbers"
	TopicGeneral  = "general"
)

const ErrorResponse = "I'm sorry, let me try to help you with something else. What would you like to learn about?"

const promptTemplate = "You are a friendly, patient teacher for young children. A child says: '%s'. Respond in a simple, encouraging, and educational way."

var inappropriateWords = []string{
	"violence", "kill", "death", "die", "hurt", "pain", "blood", "weapon",
	"stupid", "dumb", "hate", "angry", "mad", "bad words", "curse",
	"scary", "frightening", "nightmare", "monster", "ghost",
}

var adultTopics = []string{"politics", "religion", "dating", "romance", "marriage"}

var educationalResponses = map[string][]string{
	TopicMath: {
		"Math is so much fun! Let's practice counting or simple addition.",
		"Numbers are everywhere! Can you count to 10 with me?",
		"Let's solve a fun math puzzle together!",
	},
	TopicReading: {
		"Reading opens up magical worlds! What's your favorite story?",
		"Let's practice reading together. Can you tell me about a book you like?",
		"Reading is like going on adventures! What would you like to read about?",
	},
	TopicSpelling: {
		"Spelling helps us write amazing stories! Let's practice some fun words.",
		"Letters make words, and words make stories! What word should we spell?",
		"Spelling is like a puzzle with letters! Want to try spelling your name?",
	},
	TopicNumbers: {
		"Numbers help us understand the world! Let's count something fun.",
		"Numbers are like friends - they help us with so many things!",
		"Let's explore numbers together! What's your favorite number?",
	},
	TopicGeneral: {
		"That's a great question! Learning is always an adventure.",
		"I love helping you learn new things! What interests you most?",
		"You're such a curious learner! That's wonderful!",
		"Learning together is so much fun! What would you like to explore?",
	},
}

// checked in order; the first topic with a matching keyword wins
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{TopicMath, []string{"math", "add", "subtract", "count", "number"}},
	{TopicReading, []string{"read", "book", "story", "letter"}},
	{TopicSpelling, []string{"spell", "write", "word"}},
	{TopicNumbers, []string{"number", "count", "digit"}},
}

var encouragingEndings = []string{
	" Keep up the great learning!",
	" You're doing wonderfully!",
	" Learning is so much fun!",
	" Great question!",
	" You're so curious - I love that!",
}

var (
	fillerRe      = regexp.MustCompile(`(?i)\b(um|uh|er)\b`)
	negativeWords = []string{"bad", "wrong", "error", "fail"}
)

// Reply is a responder answer plus where it came from.
type Reply struct {
	Text     string `json:"text"`
	Topic    string `json:"topic"`
	Fallback bool   `json:"fallback"` // template answer, no model involved
	Filtered bool   `json:"filtered"` // the input or the model output was rejected
}

type Responder struct {
	gen generator.Generator

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResponder answers from gen when set, from templates otherwise.
func NewResponder(gen generator.Generator, seed int64) *Responder {
	return &Responder{
		gen: gen,
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (r *Responder) HasGenerator() bool {
	return r.gen != nil
}

func (r *Responder) pick(list []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return list[r.rng.Intn(len(list))]
}

// Appropriate reports whether text is free of words and topics unsuitable for children.
func Appropriate(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range inappropriateWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	for _, t := range adultTopics {
		if strings.Contains(lower, t) {
			return false
		}
	}
	return true
}

// DetectTopic maps a message to one of the template topics.
func DetectTopic(message string) string {
	lower := strings.ToLower(message)
	for _, tk := range topicKeywords {
		for _, k := range tk.keywords {
			if strings.Contains(lower, k) {
				return tk.topic
			}
		}
	}
	return TopicGeneral
}

// ChildFriendly drops filler words, softens negative wording and adds an
// encouraging ending to short unpunctuated replies.
func (r *Responder) ChildFriendly(text string) string {
	text = fillerRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	lower := strings.ToLower(text)
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			text = "That's okay! Learning means trying new things. " + text
			break
		}
	}

	if len(text) < 100 && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") && !strings.HasSuffix(text, ".") {
		text += r.pick(encouragingEndings)
	}
	return strings.TrimSpace(text)
}

// Educational picks a template answer for the message's topic.
func (r *Responder) Educational(message string) Reply {
	topic := DetectTopic(message)
	return Reply{
		Text:     r.pick(educationalResponses[topic]),
		Topic:    topic,
		Fallback: true,
	}
}

// Respond answers a child's message. It never fails: model errors and
// unsuitable model output fall back to templates.
func (r *Responder) Respond(ctx context.Context, message string) Reply {
	return r.respond(ctx, message, true)
}

func (r *Responder) respond(ctx context.Context, message string, screenInput bool) (reply Reply) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Responder: panic while answering: %v", p)
			reply = Reply{Text: ErrorResponse, Topic: TopicGeneral, Fallback: true}
		}
	}()

	if screenInput && !Appropriate(message) {
		return Reply{Text: ErrorResponse, Topic: TopicGeneral, Fallback: true, Filtered: true}
	}

	if r.gen == nil {
		return r.Educational(message)
	}

	out, err := r.gen.Generate(ctx, fmt.Sprintf(promptTemplate, message))
	if err != nil {
		log.Debugf("Responder: generator failed, using templates: %v", err)
		return r.Educational(message)
	}

	if !Appropriate(out) {
		log.Warnf("Responder: generated reply rejected by content filter")
		rep := r.Educational(message)
		rep.Filtered = true
		return rep
	}

	return Reply{
		Text:  r.ChildFriendly(out),
		Topic: DetectTopic(message),
	}
}
