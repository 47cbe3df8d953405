// Package tutor runs personalized kindergarten lessons on top of stored
// student profiles: it picks subjects and difficulty, checks answers,
// and adapts encouragement to how the learner is doing.
package tutor

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"teacher1/datamodel/student"

	log "github.com/sirupsen/logrus"
)

var ErrNoSession = errors.New("no active session found")

// AskName is the reply when nobody has started a session.
const AskName = "Hi! What's your name? I'd love to learn with you!"

const defaultAge = 5

// Meta describes what a reply did.
type Meta struct {
	BreakSuggested        bool            `json:"break_suggested,omitempty"`
	LessonStarted         bool            `json:"lesson_started,omitempty"`
	Subject               student.Subject `json:"subject,omitempty"`
	AnswerProcessed       bool            `json:"answer_processed,omitempty"`
	Correct               bool            `json:"correct,omitempty"`
	EncouragementProvided bool            `json:"encouragement_provided,omitempty"`
}

// Summary is a learner's progress snapshot.
type Summary struct {
	Name               string                                `json:"name"`
	Progress           map[student.Subject]*student.Progress `json:"progress"`
	LearningStyle      string                                `json:"learning_style"`
	Engagement         student.Engagement                    `json:"engagement"`
	TotalSessions      int                                   `json:"total_sessions"`
	NeedsEncouragement bool                                  `json:"needs_encouragement"`
}

type pending struct {
	question   string
	difficulty int
	asked      time.Time
}

// Session is one learner's active lesson.
type Session struct {
	ID string

	mu      sync.Mutex
	profile *student.Profile
	started time.Time
	current map[student.Subject]*pending
	last    student.Subject
}

func (s *Session) StudentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Name
}

type Tutor struct {
	index student.ProfileIndex

	mu       sync.Mutex
	sessions map[string]*Session
	rng      *rand.Rand
	now      func() time.Time
}

func New(index student.ProfileIndex, seed int64) *Tutor {
	return &Tutor{
		index:    index,
		sessions: make(map[string]*Session),
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
	}
}

func (t *Tutor) pick(list []string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return list[t.rng.Intn(len(list))]
}

// StartSession loads or creates the learner's profile and opens a session.
func (t *Tutor) StartSession(name string) (*Session, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", errors.New("student name is required")
	}

	p, err := t.index.GetByName(name)
	if err != nil {
		log.Infof("Tutor: creating new profile for %s", name)
		p = student.New(name, defaultAge)
	}

	st := p.StartSession()
	if _, err := t.index.Put(p); err != nil {
		return nil, "", fmt.Errorf("saving profile for %s: %w", name, err)
	}

	s := &Session{
		ID:      st.ID,
		profile: p,
		started: t.now(),
		current: make(map[student.Subject]*pending),
	}

	t.mu.Lock()
	t.sessions[s.ID] = s
	t.mu.Unlock()

	return s, greeting(p), nil
}

func (t *Tutor) Session(id string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	return s, ok
}

func (t *Tutor) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func greeting(p *student.Profile) string {
	if prev := p.PreviousSession(); prev != nil && len(prev.SubjectsCovered) > 0 {
		last := prev.SubjectsCovered[len(prev.SubjectsCovered)-1]
		return fmt.Sprintf("Hi %s! Great to see you again! Last time we worked on %s. What would you like to learn today?", p.Name, last)
	}

	switch p.LearningStyle.Preferred() {
	case "visual":
		return fmt.Sprintf("Hello %s! I'm so excited to learn with you today! I have some fun pictures and activities to show you!", p.Name)
	case "auditory":
		return fmt.Sprintf("Hi there, %s! Ready to listen and learn together? We can practice sounds and words!", p.Name)
	default:
		return fmt.Sprintf("Hey %s! Let's have fun learning together today! We can play games and try new activities!", p.Name)
	}
}

// Respond answers one learner line within a session.
func (t *Tutor) Respond(sessionID, text string) (string, Meta, error) {
	s, ok := t.Session(sessionID)
	if !ok {
		return AskName, Meta{}, ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.now()
	if s.profile.NeedsBreak(s.started, now) {
		return t.pick(breakSuggestions), Meta{BreakSuggested: true}, nil
	}

	kind, subject := analyze(text)
	if kind == intentAnswer {
		subject = s.last
	}

	switch kind {
	case intentGreeting:
		return greeting(s.profile), Meta{}, nil
	case intentHelp:
		return t.pick(helpResponses), Meta{}, nil
	case intentLesson:
		difficulty := s.profile.RecommendedDifficulty(subject)
		return t.lesson(s, subject, difficulty, now), Meta{LessonStarted: true, Subject: subject}, nil
	case intentEncourage:
		return t.pick(encouragement[s.profile.EncouragementLevel()]), Meta{EncouragementProvided: true}, nil
	}

	reply, correct, err := t.answer(s, subject, text, now)
	if err != nil {
		return reply, Meta{}, err
	}
	return reply, Meta{AnswerProcessed: true, Subject: subject, Correct: correct}, nil
}

func analyze(text string) (intent, student.Subject) {
	lower := strings.ToLower(text)
	words := tokenize(lower)

	switch {
	case matchAny(lower, words, greetingWords):
		return intentGreeting, ""
	case matchAny(lower, words, helpWords):
		return intentHelp, ""
	}
	for _, sw := range subjectWords {
		if matchAny(lower, words, sw.words) {
			return intentLesson, sw.subject
		}
	}
	if matchAny(lower, words, frustrationWords) {
		return intentEncourage, ""
	}
	return intentAnswer, ""
}

func tokenize(lower string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		words[w] = true
	}
	return words
}

// matchAny matches single words whole and phrases as substrings.
func matchAny(lower string, words map[string]bool, keys []string) bool {
	for _, k := range keys {
		if strings.ContainsAny(k, " '") {
			if strings.Contains(lower, k) {
				return true
			}
			continue
		}
		if words[k] {
			return true
		}
	}
	return false
}

func (t *Tutor) lesson(s *Session, subject student.Subject, difficulty int, now time.Time) string {
	levels, ok := content[subject]
	if !ok {
		return fmt.Sprintf("I'd love to help you with %s! Let's start with something fun and easy.", subject)
	}
	set, ok := levels[difficulty]
	if !ok {
		set = levels[student.MinLevel]
		difficulty = student.MinLevel
	}

	q := t.pick(set.Questions)
	s.current[subject] = &pending{question: q, difficulty: difficulty, asked: now}
	s.last = subject

	switch s.profile.LearningStyle.Preferred() {
	case "visual":
		return fmt.Sprintf("Let's look at this %s question together! %s Take your time and think about it!", subject, q)
	case "auditory":
		return fmt.Sprintf("Listen carefully to this %s question: %s Say your answer out loud!", subject, q)
	default:
		return fmt.Sprintf("Here's a fun %s challenge for you! %s You can use your fingers or draw if it helps!", subject, q)
	}
}

func (t *Tutor) answer(s *Session, subject student.Subject, text string, now time.Time) (string, bool, error) {
	q, ok := s.current[subject]
	if subject == "" || !ok {
		return t.pick(adaptiveResponses), false, nil
	}

	taken := now.Sub(q.asked)
	correct := evaluate(subject, text)

	s.profile.RecordActivity(s.ID, subject, fmt.Sprintf("question_%d", q.difficulty), correct, q.difficulty, taken)
	delete(s.current, subject)

	if _, err := t.index.Put(s.profile); err != nil {
		return "", false, fmt.Errorf("saving progress: %w", err)
	}

	return t.feedback(s.profile, correct, taken, subject), correct, nil
}

// evaluate counts any attempt of the right kind as correct.
func evaluate(subject student.Subject, text string) bool {
	text = strings.TrimSpace(text)
	hasDigit := strings.IndexFunc(text, unicode.IsDigit) >= 0
	hasLetter := strings.IndexFunc(text, unicode.IsLetter) >= 0

	switch subject {
	case student.Math:
		if hasDigit {
			return true
		}
	case student.Reading, student.Spelling:
		if hasLetter {
			return true
		}
	case student.Numbers:
		if hasDigit || strings.Contains(text, ",") {
			return true
		}
	}
	return text != ""
}

func (t *Tutor) feedback(p *student.Profile, correct bool, taken time.Duration, subject student.Subject) string {
	var fb string
	switch {
	case correct && taken < 30*time.Second:
		fb = t.pick(quickPraise)
		if strings.Contains(fb, "%s") {
			fb = fmt.Sprintf(fb, subject)
		}
	case correct:
		fb = t.pick(carefulPraise)
	case p.EncouragementLevel() == "high":
		fb = t.pick(encouragement["high"])
	default:
		fb = t.pick(gentleRetry)
	}

	var next string
	switch {
	case p.IsFrustrated():
		next = "How about we try something different and fun?"
	case correct:
		next = fmt.Sprintf("Ready for another %s challenge?", subject)
	default:
		next = fmt.Sprintf("Let's try a different %s activity that might be easier!", subject)
	}
	return fb + " " + next
}

// EndSession closes the session, saves the profile and says goodbye.
func (t *Tutor) EndSession(sessionID string) (string, error) {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	delete(t.sessions, sessionID)
	t.mu.Unlock()
	if !ok {
		return "Goodbye! Come back anytime to learn more!", ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profile
	p.EndSession(s.ID)
	if _, err := t.index.Put(p); err != nil {
		return "", fmt.Errorf("saving profile for %s: %w", p.Name, err)
	}

	if st := p.Session(s.ID); st != nil && len(st.SubjectsCovered) > 0 {
		subjects := make([]string, 0, len(st.SubjectsCovered))
		for _, sub := range st.SubjectsCovered {
			subjects = append(subjects, string(sub))
		}
		sort.Strings(subjects)
		return fmt.Sprintf("Great job today, %s! You worked on %s and did wonderful! I can't wait to learn with you again!", p.Name, strings.Join(subjects, ", ")), nil
	}
	return fmt.Sprintf("Thanks for spending time with me, %s! Come back soon and we'll learn lots of fun things together!", p.Name), nil
}

// Progress summarizes the learner of an active session.
func (t *Tutor) Progress(sessionID string) (Summary, error) {
	s, ok := t.Session(sessionID)
	if !ok {
		return Summary{}, ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile

	progress := make(map[student.Subject]*student.Progress, len(p.Progress))
	for k, v := range p.Progress {
		c := *v
		progress[k] = &c
	}
	return Summary{
		Name:               p.Name,
		Progress:           progress,
		LearningStyle:      p.LearningStyle.Preferred(),
		Engagement:         p.Engagement,
		TotalSessions:      len(p.Sessions),
		NeedsEncouragement: p.IsFrustrated(),
	}, nil
}
