package tutor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"teacher1/datamodel/student"
)

var ErrUnknownStudent = errors.New("unknown student")

var skillLevels = map[student.Subject][student.MaxLevel]string{
	student.Math: {
		"Counting 1-5, basic number recognition",
		"Counting 1-10, simple addition (1+1, 2+1)",
		"Counting 1-20, addition/subtraction up to 5",
		"Counting 1-50, addition/subtraction up to 10",
		"Counting 1-100, basic problem solving",
	},
	student.Reading: {
		"Letter recognition A-M, basic phonics",
		"Letter recognition A-Z, simple words",
		"Three-letter words, basic sentences",
		"Simple sentences, sight words",
		"Short stories, reading comprehension",
	},
	student.Spelling: {
		"Name spelling, 3-letter words",
		"Simple CVC words (cat, dog, sun)",
		"4-letter words, common words",
		"Simple sentences, familiar words",
		"Complex words, creative writing",
	},
	student.Numbers: {
		"Numbers 1-10, counting objects",
		"Numbers 1-20, number order",
		"Numbers 1-50, skip counting",
		"Numbers 1-100, number patterns",
		"Large numbers, mathematical concepts",
	},
}

var styleRecommendations = map[string][]string{
	"visual": {
		"Use more visual aids, pictures, and colorful materials",
		"Incorporate drawing and visual mapping activities",
	},
	"auditory": {
		"Include more songs, rhymes, and verbal instructions",
		"Use storytelling and discussion-based learning",
	},
	"kinesthetic": {
		"Provide hands-on activities and movement-based learning",
		"Use manipulatives and interactive games",
	},
}

// LearningProfile describes how a learner learns.
type LearningProfile struct {
	PrimaryStyle      string             `json:"primary_style"`
	StyleDistribution map[string]float64 `json:"style_distribution"`
	AttentionSpan     time.Duration      `json:"attention_span"`
	EngagementPattern string             `json:"engagement_pattern"`
	PreferredSubjects []student.Subject  `json:"preferred_subjects"`
}

// SubjectAssessment is the learner's standing in one subject.
type SubjectAssessment struct {
	Subject        student.Subject `json:"subject"`
	Level          int             `json:"current_level"`
	Skill          string          `json:"skill_description"`
	Attempts       int             `json:"attempts"`
	SuccessRate    float64         `json:"success_rate"`
	Score          int             `json:"total_score"`
	Mastery        string          `json:"mastery_level"`
	NextLevelReady string          `json:"next_level_readiness"`
}

type EngagementAnalysis struct {
	Level              string  `json:"engagement_level"`
	PositivityRate     float64 `json:"positivity_rate"`
	Frustration        int     `json:"frustration_indicators"`
	Excitement         int     `json:"excitement_indicators"`
	TotalInteractions  int     `json:"total_interactions"`
	NeedsEncouragement bool    `json:"needs_encouragement"`
}

type AreaReadiness struct {
	Score    int    `json:"score"`
	ReadyFor string `json:"ready_for"`
}

type Readiness struct {
	MathematicalThinking AreaReadiness `json:"mathematical_thinking"`
	ReadingReadiness     AreaReadiness `json:"reading_readiness"`
	OverallScore         float64       `json:"overall_readiness_score"`
	Level                string        `json:"readiness_level"`
}

// Assessment is a teacher-facing progress report for one learner.
type Assessment struct {
	StudentName     string              `json:"student_name"`
	StudentID       string              `json:"student_id"`
	Age             int                 `json:"age"`
	Date            time.Time           `json:"assessment_date"`
	TotalSessions   int                 `json:"total_sessions"`
	LearningProfile LearningProfile     `json:"learning_profile"`
	Progress        []SubjectAssessment `json:"academic_progress"`
	Engagement      EngagementAnalysis  `json:"engagement_analysis"`
	Recommendations []string            `json:"recommendations"`
	Readiness       Readiness           `json:"kindergarten_readiness"`
}

// Assess reports on a learner by name. A learner in an active session is
// assessed from the live profile, anyone else from the index.
func (t *Tutor) Assess(name string) (*Assessment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownStudent)
	}

	for _, s := range t.activeSessions() {
		s.mu.Lock()
		if strings.EqualFold(s.profile.Name, name) {
			a := Assess(s.profile, t.now())
			s.mu.Unlock()
			return a, nil
		}
		s.mu.Unlock()
	}

	p, err := t.index.GetByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnknownStudent, name, err)
	}
	return Assess(p, t.now()), nil
}

func (t *Tutor) activeSessions() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// Assess builds the assessment of p as of now.
func Assess(p *student.Profile, now time.Time) *Assessment {
	a := &Assessment{
		StudentName:   p.Name,
		StudentID:     p.ID.String(),
		Age:           p.Age,
		Date:          now,
		TotalSessions: len(p.Sessions),
		LearningProfile: LearningProfile{
			PrimaryStyle: p.LearningStyle.Preferred(),
			StyleDistribution: map[string]float64{
				"visual":      p.LearningStyle.Visual,
				"auditory":    p.LearningStyle.Auditory,
				"kinesthetic": p.LearningStyle.Kinesthetic,
			},
			AttentionSpan:     p.Engagement.AttentionSpan,
			EngagementPattern: engagementPattern(p.Sessions),
			PreferredSubjects: preferredSubjects(p),
		},
		Engagement: analyzeEngagement(p),
	}
	for _, subject := range student.Subjects {
		pr, ok := p.Progress[subject]
		if !ok {
			continue
		}
		a.Progress = append(a.Progress, assessSubject(subject, pr))
	}
	a.Recommendations = recommend(p)
	a.Readiness = readiness(p)
	return a
}

func engagementPattern(sessions []*student.Session) string {
	if len(sessions) == 0 {
		return "No session data"
	}
	total := 0
	for _, s := range sessions {
		total += len(s.Activities)
	}
	avg := float64(total) / float64(len(sessions))
	switch {
	case avg >= 8:
		return "High activity engagement"
	case avg >= 5:
		return "Good activity engagement"
	case avg >= 2:
		return "Moderate activity engagement"
	default:
		return "Low activity engagement"
	}
}

// preferredSubjects ranks subjects by successful attempts and keeps the top two.
func preferredSubjects(p *student.Profile) []student.Subject {
	var ranked []student.Subject
	for _, s := range student.Subjects {
		if pr, ok := p.Progress[s]; ok && pr.Attempts > 0 {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return weight(p.Progress[ranked[i]]) > weight(p.Progress[ranked[j]])
	})
	if len(ranked) > 2 {
		ranked = ranked[:2]
	}
	return ranked
}

func weight(pr *student.Progress) float64 {
	return pr.SuccessRate() * float64(pr.Attempts)
}

func assessSubject(subject student.Subject, pr *student.Progress) SubjectAssessment {
	rate := pr.SuccessRate()
	sa := SubjectAssessment{
		Subject:     subject,
		Level:       pr.Level,
		Skill:       skillDescription(subject, pr.Level),
		Attempts:    pr.Attempts,
		SuccessRate: rate,
		Score:       pr.Score,
	}

	switch {
	case pr.Attempts < 3:
		sa.Mastery = "Insufficient attempts"
	case rate >= 0.9:
		sa.Mastery = "Mastered"
	case rate >= 0.7:
		sa.Mastery = "Proficient"
	case rate >= 0.5:
		sa.Mastery = "Developing"
	default:
		sa.Mastery = "Needs support"
	}

	switch {
	case pr.Attempts < 5:
		sa.NextLevelReady = "Need more practice at current level"
	case rate >= 0.85:
		sa.NextLevelReady = "Ready to advance"
	case rate >= 0.7:
		sa.NextLevelReady = "Nearly ready to advance"
	default:
		sa.NextLevelReady = "Continue at current level"
	}
	return sa
}

func skillDescription(subject student.Subject, level int) string {
	levels, ok := skillLevels[subject]
	if !ok || level < student.MinLevel || level > student.MaxLevel {
		return "Unknown level"
	}
	return levels[level-1]
}

func analyzeEngagement(p *student.Profile) EngagementAnalysis {
	e := p.Engagement
	total := e.PositiveResponses + e.NegativeResponses
	ea := EngagementAnalysis{
		Frustration:        e.FrustrationIndicators,
		Excitement:         e.ExcitementIndicators,
		TotalInteractions:  total,
		NeedsEncouragement: p.IsFrustrated(),
	}
	if total == 0 {
		ea.Level = "Insufficient data"
		return ea
	}
	ea.PositivityRate = float64(e.PositiveResponses) / float64(total)
	switch {
	case ea.PositivityRate >= 0.8:
		ea.Level = "Highly engaged"
	case ea.PositivityRate >= 0.6:
		ea.Level = "Well engaged"
	case ea.PositivityRate >= 0.4:
		ea.Level = "Moderately engaged"
	default:
		ea.Level = "May need support"
	}
	return ea
}

func recommend(p *student.Profile) []string {
	recs := append([]string(nil), styleRecommendations[p.LearningStyle.Preferred()]...)

	for _, subject := range student.Subjects {
		pr, ok := p.Progress[subject]
		if !ok || pr.Attempts == 0 {
			continue
		}
		rate := pr.SuccessRate()
		if rate < 0.5 {
			recs = append(recs,
				fmt.Sprintf("Consider review and reinforcement in %s", subject),
				fmt.Sprintf("Break down %s concepts into smaller steps", subject))
		} else if rate > 0.8 && pr.Attempts >= 5 {
			recs = append(recs, fmt.Sprintf("Ready to advance in %s - introduce new challenges", subject))
		}
	}

	if p.IsFrustrated() {
		recs = append(recs,
			"Provide extra encouragement and celebrate small victories",
			"Consider shorter learning sessions with more breaks")
	}

	switch span := p.Engagement.AttentionSpan; {
	case span < 3*time.Minute:
		recs = append(recs, "Use very short activities (1-2 minutes) with frequent changes")
	case span < 5*time.Minute:
		recs = append(recs, "Break lessons into 3-5 minute segments")
	}

	if len(recs) == 0 {
		recs = append(recs, "Continue current approach - student is progressing well")
	}
	return recs
}

// readinessScore is 0 for an untracked subject and 30 for an untried one.
func readinessScore(p *student.Profile, subject student.Subject) int {
	pr, ok := p.Progress[subject]
	if !ok {
		return 0
	}
	if pr.Attempts == 0 {
		return 30
	}
	rate := pr.SuccessRate()
	score := rate*50 + float64(pr.Level-1)*20 + 30
	if rate > 0.7 {
		score += 10
	}
	return min(100, int(score))
}

func readiness(p *student.Profile) Readiness {
	r := Readiness{
		MathematicalThinking: AreaReadiness{Score: readinessScore(p, student.Math)},
		ReadingReadiness:     AreaReadiness{Score: readinessScore(p, student.Reading)},
	}
	r.MathematicalThinking.ReadyFor = "Number recognition practice"
	if r.MathematicalThinking.Score >= 70 {
		r.MathematicalThinking.ReadyFor = "Basic addition"
	}
	r.ReadingReadiness.ReadyFor = "Letter sound practice"
	if r.ReadingReadiness.Score >= 70 {
		r.ReadingReadiness.ReadyFor = "Simple words"
	}

	r.OverallScore = float64(r.MathematicalThinking.Score+r.ReadingReadiness.Score) / 2
	switch {
	case r.OverallScore >= 80:
		r.Level = "Exceeds kindergarten expectations"
	case r.OverallScore >= 60:
		r.Level = "Meets kindergarten expectations"
	case r.OverallScore >= 40:
		r.Level = "Approaching kindergarten readiness"
	default:
		r.Level = "Needs additional support"
	}
	return r
}

// Report renders the assessment as plain text for parents and teachers.
func (a *Assessment) Report() string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "KINDERGARTEN LEARNING PROGRESS REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Student: %s\n", a.StudentName)
	fmt.Fprintf(&b, "Date: %s\n", a.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Total Learning Sessions: %d\n\n", a.TotalSessions)

	lp := a.LearningProfile
	fmt.Fprintln(&b, "LEARNING PROFILE")
	fmt.Fprintf(&b, "Primary Learning Style: %s\n", titleCase(lp.PrimaryStyle))
	fmt.Fprintf(&b, "Attention Span: %d minutes\n", int(lp.AttentionSpan/time.Minute))
	fmt.Fprintf(&b, "Engagement Pattern: %s\n", lp.EngagementPattern)
	if len(lp.PreferredSubjects) == 0 {
		fmt.Fprintln(&b, "Preferred Subjects: Insufficient data to determine preferences")
	} else {
		names := make([]string, len(lp.PreferredSubjects))
		for i, s := range lp.PreferredSubjects {
			names[i] = string(s)
		}
		fmt.Fprintf(&b, "Preferred Subjects: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "ACADEMIC PROGRESS")
	for _, sa := range a.Progress {
		fmt.Fprintf(&b, "%s:\n", strings.ToUpper(string(sa.Subject)))
		fmt.Fprintf(&b, "  Current Level: %d - %s\n", sa.Level, sa.Skill)
		fmt.Fprintf(&b, "  Mastery Status: %s\n", sa.Mastery)
		fmt.Fprintf(&b, "  Success Rate: %.1f%% (%d attempts)\n", sa.SuccessRate*100, sa.Attempts)
		fmt.Fprintf(&b, "  Next Level: %s\n", sa.NextLevelReady)
	}
	fmt.Fprintln(&b)

	e := a.Engagement
	fmt.Fprintln(&b, "ENGAGEMENT ANALYSIS")
	fmt.Fprintf(&b, "Overall Engagement: %s\n", e.Level)
	fmt.Fprintf(&b, "Positive Response Rate: %.1f%%\n", e.PositivityRate*100)
	if e.NeedsEncouragement {
		fmt.Fprintln(&b, "Needs Encouragement: yes")
	}
	fmt.Fprintln(&b)

	r := a.Readiness
	fmt.Fprintln(&b, "KINDERGARTEN READINESS")
	fmt.Fprintf(&b, "Overall Level: %s\n", r.Level)
	fmt.Fprintf(&b, "Math Readiness: %d/100\n", r.MathematicalThinking.Score)
	fmt.Fprintf(&b, "Reading Readiness: %d/100\n\n", r.ReadingReadiness.Score)

	fmt.Fprintln(&b, "RECOMMENDATIONS")
	for i, rec := range a.Recommendations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
	}
	fmt.Fprint(&b, rule)
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
