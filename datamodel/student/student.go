package student

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Subject string

const (
	Math     Subject = "math"
	Reading  Subject = "reading"
	Spelling Subject = "spelling"
	Numbers  Subject = "numbers"
)

var Subjects = []Subject{Math, Reading, Spelling, Numbers}

const (
	MinLevel = 1
	MaxLevel = 5

	defaultAttentionSpan = 5 * time.Minute
	defaultBreakEvery    = 10 * time.Minute
)

type Progress struct {
	Level     int `cbor:"1,keyasint" json:"level"`
	Score     int `cbor:"2,keyasint" json:"score"`
	Attempts  int `cbor:"3,keyasint" json:"attempts"`
	Successes int `cbor:"4,keyasint" json:"successes"`
}

func (p *Progress) SuccessRate() float64 {
	if p.Attempts == 0 {
		return 0
	}
	return float64(p.Successes) / float64(p.Attempts)
}

type LearningStyle struct {
	Visual      float64 `cbor:"1,keyasint"`
	Auditory    float64 `cbor:"2,keyasint"`
	Kinesthetic float64 `cbor:"3,keyasint"`
}

// Preferred returns the dominant style; ties resolve in visual, auditory, kinesthetic order.
func (s LearningStyle) Preferred() string {
	best, name := s.Visual, "visual"
	if s.Auditory > best {
		best, name = s.Auditory, "auditory"
	}
	if s.Kinesthetic > best {
		name = "kinesthetic"
	}
	return name
}

func (s *LearningStyle) normalize() {
	total := s.Visual + s.Auditory + s.Kinesthetic
	if total == 0 {
		return
	}
	s.Visual /= total
	s.Auditory /= total
	s.Kinesthetic /= total
}

type Engagement struct {
	AttentionSpan         time.Duration `cbor:"1,keyasint" json:"attention_span"`
	PositiveResponses     int           `cbor:"2,keyasint" json:"positive_responses"`
	NegativeResponses     int           `cbor:"3,keyasint" json:"negative_responses"`
	FrustrationIndicators int           `cbor:"4,keyasint" json:"frustration_indicators"`
	ExcitementIndicators  int           `cbor:"5,keyasint" json:"excitement_indicators"`
}

type Preferences struct {
	FavoriteSubject      Subject       `cbor:"1,keyasint,omitempty"`
	DifficultyPreference string        `cbor:"2,keyasint,omitempty"` // adaptive, easy, medium, hard
	InteractionStyle     string        `cbor:"3,keyasint,omitempty"` // encouraging, neutral, challenging
	BreakFrequency       time.Duration `cbor:"4,keyasint,omitempty"`
}

type Activity struct {
	Timestamp  time.Time     `cbor:"1,keyasint"`
	Subject    Subject       `cbor:"2,keyasint"`
	Activity   string        `cbor:"3,keyasint"`
	Success    bool          `cbor:"4,keyasint"`
	Difficulty int           `cbor:"5,keyasint"`
	TimeTaken  time.Duration `cbor:"6,keyasint"`
	Score      int           `cbor:"7,keyasint"`
}

type Session struct {
	ID              string      `cbor:"1,keyasint"`
	Start           time.Time   `cbor:"2,keyasint"`
	End             time.Time   `cbor:"3,keyasint,omitempty"`
	Activities      []*Activity `cbor:"4,keyasint,omitempty"`
	SubjectsCovered []Subject   `cbor:"5,keyasint,omitempty"`
}

// Profile tracks one learner across sessions.
type Profile struct {
	ID            uuid.UUID             `cbor:"1,keyasint"`
	Name          string                `cbor:"2,keyasint"`
	Age           int                   `cbor:"3,keyasint"`
	CreatedAt     time.Time             `cbor:"4,keyasint"`
	LastActive    time.Time             `cbor:"5,keyasint"`
	Progress      map[Subject]*Progress `cbor:"6,keyasint"`
	LearningStyle LearningStyle         `cbor:"7,keyasint"`
	Engagement    Engagement            `cbor:"8,keyasint"`
	Sessions      []*Session            `cbor:"9,keyasint,omitempty"`
	Preferences   Preferences           `cbor:"10,keyasint"`
}

func New(name string, age int) *Profile {
	now := time.Now().UTC()
	p := &Profile{
		ID:         uuid.New(),
		Name:       name,
		Age:        age,
		CreatedAt:  now,
		LastActive: now,
		Progress:   make(map[Subject]*Progress, len(Subjects)),
		LearningStyle: LearningStyle{
			Visual:      0.33,
			Auditory:    0.33,
			Kinesthetic: 0.34,
		},
		Engagement: Engagement{AttentionSpan: defaultAttentionSpan},
		Preferences: Preferences{
			DifficultyPreference: "adaptive",
			InteractionStyle:     "encouraging",
			BreakFrequency:       defaultBreakEvery,
		},
	}
	for _, s := range Subjects {
		p.Progress[s] = &Progress{Level: MinLevel}
	}
	return p
}

func (p *Profile) StartSession() *Session {
	s := &Session{
		ID:    uuid.NewString(),
		Start: time.Now().UTC(),
	}
	p.Sessions = append(p.Sessions, s)
	p.LastActive = s.Start
	return s
}

func (p *Profile) Session(id string) *Session {
	for _, s := range p.Sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (p *Profile) EndSession(id string) {
	if s := p.Session(id); s != nil {
		s.End = time.Now().UTC()
		p.LastActive = s.End
	}
}

// PreviousSession returns the session before the most recent one, if any.
func (p *Profile) PreviousSession() *Session {
	if len(p.Sessions) < 2 {
		return nil
	}
	return p.Sessions[len(p.Sessions)-2]
}

// ActivityScore rates one attempt on a 0..100 scale. Failed attempts earn participation points.
func ActivityScore(success bool, difficulty int, timeTaken time.Duration) int {
	if !success {
		return max(0, 20-difficulty*5)
	}

	base := float64(50 + difficulty*10)

	var multiplier float64
	switch {
	case timeTaken < 30*time.Second: // very fast, may be guessing
		multiplier = 0.8
	case timeTaken < 2*time.Minute:
		multiplier = 1.0
	case timeTaken < 5*time.Minute:
		multiplier = 0.95
	default:
		multiplier = 0.7
	}

	return min(100, int(base*multiplier))
}

// RecordActivity adds an attempt to the given session and updates progress,
// learning style and engagement. Unknown sessions are ignored.
func (p *Profile) RecordActivity(sessionID string, subject Subject, activity string, success bool, difficulty int, timeTaken time.Duration) *Activity {
	s := p.Session(sessionID)
	if s == nil {
		return nil
	}

	a := &Activity{
		Timestamp:  time.Now().UTC(),
		Subject:    subject,
		Activity:   activity,
		Success:    success,
		Difficulty: difficulty,
		TimeTaken:  timeTaken,
		Score:      ActivityScore(success, difficulty, timeTaken),
	}
	s.Activities = append(s.Activities, a)
	if !containsSubject(s.SubjectsCovered, subject) {
		s.SubjectsCovered = append(s.SubjectsCovered, subject)
	}
	p.LastActive = a.Timestamp

	p.updateProgress(a)
	p.detectLearningStyle(a)
	p.updateEngagement(a)
	return a
}

func (p *Profile) updateProgress(a *Activity) {
	pr, ok := p.Progress[a.Subject]
	if !ok {
		return
	}
	pr.Attempts++
	if !a.Success {
		return
	}
	pr.Successes++
	pr.Score += a.Score

	if pr.SuccessRate() > 0.8 && pr.Attempts >= 5 {
		pr.Level = min(MaxLevel, pr.Level+1)
	}
}

func (p *Profile) detectLearningStyle(a *Activity) {
	if !a.Success {
		return
	}
	act := strings.ToLower(a.Activity)
	switch {
	case strings.Contains(act, "visual"):
		p.LearningStyle.Visual += 0.1
	case strings.Contains(act, "sound"), strings.Contains(act, "say"):
		p.LearningStyle.Auditory += 0.1
	case strings.Contains(act, "interactive"), strings.Contains(act, "game"):
		p.LearningStyle.Kinesthetic += 0.1
	}
	p.LearningStyle.normalize()
}

func (p *Profile) updateEngagement(a *Activity) {
	e := &p.Engagement
	if a.Success {
		e.PositiveResponses++
		if a.TimeTaken < time.Minute {
			e.ExcitementIndicators++
		}
		return
	}
	e.NegativeResponses++
	if a.TimeTaken > 3*time.Minute {
		e.FrustrationIndicators++
	}
}

// RecommendedDifficulty suggests the next difficulty (MinLevel..MaxLevel) for subject.
func (p *Profile) RecommendedDifficulty(subject Subject) int {
	pr, ok := p.Progress[subject]
	if !ok || pr.Attempts == 0 {
		return MinLevel
	}
	rate := pr.SuccessRate()
	switch {
	case rate > 0.85:
		return min(MaxLevel, pr.Level+1)
	case rate > 0.6:
		return pr.Level
	default:
		return max(MinLevel, pr.Level-1)
	}
}

func (p *Profile) NeedsBreak(sessionStart, now time.Time) bool {
	return now.Sub(sessionStart) > p.Engagement.AttentionSpan
}

func (p *Profile) IsFrustrated() bool {
	e := p.Engagement
	total := e.PositiveResponses + e.NegativeResponses
	if total < 5 {
		return false
	}
	return float64(e.FrustrationIndicators)/float64(total) > 0.3
}

// EncouragementLevel is "high", "maintain" or "moderate".
func (p *Profile) EncouragementLevel() string {
	switch {
	case p.IsFrustrated():
		return "high"
	case p.Engagement.ExcitementIndicators > p.Engagement.FrustrationIndicators:
		return "maintain"
	default:
		return "moderate"
	}
}

func containsSubject(list []Subject, s Subject) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ProfileIndex stores learner profiles.
type ProfileIndex interface {
	// Get retrieves a profile by id.
	Get(uuid.UUID) (*Profile, error)

	// GetByName retrieves a profile by case-insensitive name.
	GetByName(string) (*Profile, error)

	// Put stores or replaces a profile.
	Put(*Profile) (*Profile, error)

	// Enumerate returns all stored profiles.
	Enumerate() ([]*Profile, error)
}
