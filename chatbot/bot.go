package chatbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"teacher1/datamodel/transcript"
	"teacher1/helper/timer"
	"teacher1/net/wsrelay"
	"teacher1/relay/node"
	"teacher1/relay/protocol"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	log "github.com/sirupsen/logrus"
)

var ErrEmptyUtterance = errors.New("empty utterance")

const InitialQuestion = "Hello! I'm the educational chatbot. What learning patterns are you currently analyzing?"

const defaultPeerReply = "That's an interesting observation from your AI analysis! How might we apply this insight to help students learn more effectively?"

var proactiveQuestions = []string{
	"What learning patterns are you observing in student interactions?",
	"How can we make educational content more engaging for different learning styles?",
	"What insights do you have about effective teaching methods?",
	"How might we personalize learning experiences better?",
	"What are some creative ways to assess student understanding?",
	"How can we encourage more collaborative learning?",
	"What role does storytelling play in education?",
	"How can we make learning more fun and interactive?",
}

type keywordText struct {
	keyword string
	text    string
}

// appended to answers for the peer
var enhancements = []keywordText{
	{"pattern", " From an educational perspective, pattern recognition is fundamental to learning mathematics and reading."},
	{"learn", " In education, we use scaffolded learning to build knowledge progressively."},
	{"creative", " Creativity in learning helps students develop problem-solving skills."},
}

// used for the peer when no usable answer could be produced
var peerFallbacks = []keywordText{
	{"pattern", "I see you're analyzing patterns! In education, pattern recognition helps students understand sequences, mathematics, and reading comprehension."},
	{"learn", "Learning is fascinating! I focus on adaptive, personalized education that meets each student where they are."},
	{"state", "System states remind me of how learners have different cognitive states - sometimes focused, sometimes creative, always growing!"},
	{"creative", "Creativity is essential in education! It helps students think outside the box and approach problems from multiple angles."},
}

// answer keywords that move the educational context
var contextTopics = []keywordText{
	{"pattern", "pattern_recognition"},
	{"math", "mathematics"},
	{"creative", "creative_thinking"},
}

func firstMatch(table []keywordText, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kt := range table {
		if strings.Contains(lower, kt.keyword) {
			return kt.text, true
		}
	}
	return "", false
}

// Asker originates questions on the relay. *node.Node satisfies it.
type Asker interface {
	Ask(ctx context.Context, content string) (uuid.UUID, error)
	Ready() bool
}

var _ Asker = (*node.Node)(nil)
var _ node.Handlers = (*Bot)(nil)

type BotConfig struct {
	Greet             bool          // ask InitialQuestion once the outbound link is up
	ProactiveInterval time.Duration // zero disables proactive questions
	LogSize           int
}

type EducationalContext struct {
	CurrentTopic    string   `json:"current_topic"`
	DifficultyLevel string   `json:"difficulty_level"`
	LearningGoals   []string `json:"learning_goals"`
}

// Utterance is the outcome of one user line.
type Utterance struct {
	Reply      Reply     `json:"reply"`
	Forwarded  bool      `json:"forwarded"`
	QuestionID uuid.UUID `json:"question_id,omitempty"`
}

// Bot answers users locally and talks to the simulation peer over the relay.
type Bot struct {
	responder  *Responder
	cfg        BotConfig
	store      transcript.Store
	transcript *transcript.Transcript

	linkUp chan struct{}

	mu      sync.Mutex
	asker   Asker
	edu     EducationalContext
	commLog []string
	greeted bool
	nextQ   int
	asked   int
}

// NewBot creates a bot. store may be nil, in which case transcripts are not archived.
func NewBot(name string, r *Responder, cfg BotConfig, store transcript.Store) *Bot {
	if cfg.LogSize <= 0 {
		cfg.LogSize = 200
	}
	return &Bot{
		responder:  r,
		cfg:        cfg,
		store:      store,
		transcript: transcript.New(name),
		linkUp:     make(chan struct{}, 1),
		edu:        EducationalContext{DifficultyLevel: "beginner"},
	}
}

func (b *Bot) SetAsker(a Asker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.asker = a
}

func (b *Bot) getAsker() Asker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.asker
}

func (b *Bot) Transcript() *transcript.Transcript {
	return b.transcript
}

// LinkChanged is meant for node.WithStatusListener.
func (b *Bot) LinkChanged(role wsrelay.Role, s wsrelay.Status) {
	if s != wsrelay.StatusConnected {
		return
	}
	select {
	case b.linkUp <- struct{}{}:
	default:
	}
}

// Run greets the peer on first link-up and asks proactive questions until ctx
// is cancelled. The transcript is archived on the way out.
func (b *Bot) Run(ctx context.Context) error {
	wg, cctx := errgroup.WithContext(ctx)

	if b.cfg.Greet {
		wg.Go(func() error {
			for {
				select {
				case <-cctx.Done():
					return cctx.Err()
				case <-b.linkUp:
					if err := b.Greet(cctx); err != nil {
						log.Debugf("Chatbot: greeting deferred: %v", err)
					}
				}
			}
		})
	}

	if b.cfg.ProactiveInterval > 0 {
		wg.Go(func() error {
			interval := &timer.Interval{
				Duration: b.cfg.ProactiveInterval,
				Jitter:   b.cfg.ProactiveInterval / 10,
			}
			return timer.RunWithTicker(cctx, interval, b.AskProactive)
		})
	}

	err := wg.Wait()
	if aerr := b.Archive(); aerr != nil {
		log.Errorf("Chatbot: archiving transcript: %v", aerr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Greet asks InitialQuestion once per bot.
func (b *Bot) Greet(ctx context.Context) error {
	b.mu.Lock()
	if b.greeted {
		b.mu.Unlock()
		return nil
	}
	asker := b.asker
	b.mu.Unlock()

	if asker == nil {
		return errors.New("no relay attached")
	}
	if _, err := asker.Ask(ctx, InitialQuestion); err != nil {
		return err
	}

	b.mu.Lock()
	b.greeted = true
	b.asked++
	b.mu.Unlock()
	b.appendLog("Asked AI: " + InitialQuestion)
	b.transcript.Add(transcript.SpeakerBot, InitialQuestion, "question")
	return nil
}

// AskProactive sends the next educational question if the relay is ready.
// It is run from a ticker and never fails.
func (b *Bot) AskProactive(ctx context.Context) error {
	asker := b.getAsker()
	if asker == nil || !asker.Ready() {
		return nil
	}

	b.mu.Lock()
	q := proactiveQuestions[b.nextQ%len(proactiveQuestions)]
	b.mu.Unlock()

	if _, err := asker.Ask(ctx, q); err != nil {
		log.Warnf("Chatbot: proactive question not sent: %v", err)
		return nil
	}

	b.mu.Lock()
	b.nextQ++
	b.asked++
	b.mu.Unlock()
	b.appendLog("Proactive question sent: " + q)
	b.transcript.Add(transcript.SpeakerBot, q, "question")
	log.Infof("Chatbot: sent proactive question: %s", q)
	return nil
}

// Utter answers a user line locally and, when the relay is free, forwards it
// to the peer as a question.
func (b *Bot) Utter(ctx context.Context, text string) (Utterance, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Utterance{}, ErrEmptyUtterance
	}

	b.transcript.Add(transcript.SpeakerUser, text, "")

	u := Utterance{Reply: b.responder.Respond(ctx, text)}
	note := ""
	if u.Reply.Fallback {
		note = "fallback"
	}
	b.transcript.Add(transcript.SpeakerBot, u.Reply.Text, note)

	asker := b.getAsker()
	if u.Reply.Filtered || asker == nil || !asker.Ready() {
		return u, nil
	}

	id, err := asker.Ask(ctx, text)
	if err != nil {
		log.Debugf("Chatbot: utterance not forwarded: %v", err)
		return u, nil
	}
	u.Forwarded, u.QuestionID = true, id

	b.mu.Lock()
	b.asked++
	b.mu.Unlock()
	b.appendLog("Asked AI: " + text)
	return u, nil
}

func (b *Bot) OnQuestion(ctx context.Context, m *protocol.Message) (string, error) {
	b.appendLog("AI Question: " + m.Content)
	b.transcript.Add(transcript.SpeakerPeer, m.Content, "question")

	reply := b.responder.respond(ctx, m.Content, false)

	var text string
	if reply.Filtered || reply.Text == ErrorResponse {
		var ok bool
		if text, ok = firstMatch(peerFallbacks, m.Content); !ok {
			text = defaultPeerReply
		}
		b.appendLog("Fallback Response: " + text)
	} else {
		text = reply.Text
		if extra, ok := firstMatch(enhancements, m.Content); ok {
			text += extra
		}
		b.appendLog("Chatbot Response: " + text)
	}

	b.transcript.Add(transcript.SpeakerBot, text, "answer")
	return text, nil
}

func (b *Bot) OnAnswer(ctx context.Context, m *protocol.Message) error {
	b.appendLog("AI Answer: " + m.Content)
	b.transcript.Add(transcript.SpeakerPeer, m.Content, "answer")

	topic, ok := firstMatch(contextTopics, m.Content)

	b.mu.Lock()
	if ok {
		b.edu.CurrentTopic = topic
	}
	current := b.edu.CurrentTopic
	b.mu.Unlock()

	b.appendLog("Context updated: " + current)
	return nil
}

func (b *Bot) OnAck(ctx context.Context, m *protocol.Message) error {
	b.appendLog("AI Ack: " + m.Content)
	return nil
}

// Archive stores the transcript so far.
func (b *Bot) Archive() error {
	if b.store == nil || b.transcript.Len() == 0 {
		return nil
	}
	return b.store.Put(b.transcript)
}

func (b *Bot) appendLog(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commLog = append(b.commLog, line)
	if over := len(b.commLog) - b.cfg.LogSize; over > 0 {
		b.commLog = append(b.commLog[:0], b.commLog[over:]...)
	}
}

func (b *Bot) CommunicationLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.commLog...)
}

type BotStats struct {
	ModelLoaded           bool               `json:"model_loaded"`
	CommunicationMessages int                `json:"communication_messages"`
	QuestionsAsked        int                `json:"questions_asked"`
	EducationalContext    EducationalContext `json:"educational_context"`
	TranscriptID          uuid.UUID          `json:"transcript_id"`
	TranscriptEntries     int                `json:"transcript_entries"`
}

func (b *Bot) Stats() BotStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	edu := b.edu
	edu.LearningGoals = append([]string(nil), b.edu.LearningGoals...)
	return BotStats{
		ModelLoaded:           b.responder.HasGenerator(),
		CommunicationMessages: len(b.commLog),
		QuestionsAsked:        b.asked,
		EducationalContext:    edu,
		TranscriptID:          b.transcript.ID,
		TranscriptEntries:     b.transcript.Len(),
	}
}
