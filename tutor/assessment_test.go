package tutor

import (
	"testing"
	"time"

	"teacher1/datamodel/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assessedAt = time.Date(2025, 5, 2, 15, 0, 0, 0, time.UTC)

func TestAssessNewStudent(t *testing.T) {
	a := Assess(student.New("Ava", 5), assessedAt)

	assert.Equal(t, "Ava", a.StudentName)
	assert.Equal(t, 5, a.Age)
	assert.Equal(t, 0, a.TotalSessions)
	assert.Equal(t, "kinesthetic", a.LearningProfile.PrimaryStyle)
	assert.Equal(t, "No session data", a.LearningProfile.EngagementPattern)
	assert.Empty(t, a.LearningProfile.PreferredSubjects)

	require.Len(t, a.Progress, len(student.Subjects))
	for i, sa := range a.Progress {
		assert.Equal(t, student.Subjects[i], sa.Subject)
		assert.Equal(t, "Insufficient attempts", sa.Mastery)
		assert.Equal(t, "Need more practice at current level", sa.NextLevelReady)
	}
	assert.Equal(t, "Counting 1-5, basic number recognition", a.Progress[0].Skill)

	assert.Equal(t, "Insufficient data", a.Engagement.Level)
	assert.False(t, a.Engagement.NeedsEncouragement)

	assert.Equal(t, []string{
		"Provide hands-on activities and movement-based learning",
		"Use manipulatives and interactive games",
	}, a.Recommendations)

	assert.Equal(t, 30, a.Readiness.MathematicalThinking.Score)
	assert.Equal(t, "Number recognition practice", a.Readiness.MathematicalThinking.ReadyFor)
	assert.Equal(t, "Letter sound practice", a.Readiness.ReadingReadiness.ReadyFor)
	assert.Equal(t, 30.0, a.Readiness.OverallScore)
	assert.Equal(t, "Needs additional support", a.Readiness.Level)
}

func TestAssessProgressingStudent(t *testing.T) {
	p := student.New("Leo", 6)
	p.LearningStyle = student.LearningStyle{Visual: 0.6, Auditory: 0.2, Kinesthetic: 0.2}
	p.Progress[student.Math] = &student.Progress{Level: 3, Score: 90, Attempts: 10, Successes: 9}
	p.Progress[student.Reading] = &student.Progress{Level: 1, Score: 10, Attempts: 4, Successes: 1}
	p.Progress[student.Spelling] = &student.Progress{Level: 2, Score: 60, Attempts: 6, Successes: 6}
	p.Engagement = student.Engagement{AttentionSpan: 2 * time.Minute, PositiveResponses: 8, NegativeResponses: 2}
	p.Sessions = []*student.Session{
		{ID: "a", Activities: make([]*student.Activity, 5)},
		{ID: "b", Activities: make([]*student.Activity, 3)},
	}

	a := Assess(p, assessedAt)

	assert.Equal(t, "visual", a.LearningProfile.PrimaryStyle)
	assert.Equal(t, "Moderate activity engagement", a.LearningProfile.EngagementPattern)
	assert.Equal(t, []student.Subject{student.Math, student.Spelling}, a.LearningProfile.PreferredSubjects)

	math, reading, spelling := a.Progress[0], a.Progress[1], a.Progress[2]
	assert.Equal(t, "Counting 1-20, addition/subtraction up to 5", math.Skill)
	assert.Equal(t, "Mastered", math.Mastery)
	assert.Equal(t, "Ready to advance", math.NextLevelReady)
	assert.InDelta(t, 0.9, math.SuccessRate, 1e-9)
	assert.Equal(t, "Needs support", reading.Mastery)
	assert.Equal(t, "Need more practice at current level", reading.NextLevelReady)
	assert.Equal(t, "Simple CVC words (cat, dog, sun)", spelling.Skill)
	assert.Equal(t, "Mastered", spelling.Mastery)

	assert.Equal(t, "Highly engaged", a.Engagement.Level)
	assert.InDelta(t, 0.8, a.Engagement.PositivityRate, 1e-9)
	assert.Equal(t, 10, a.Engagement.TotalInteractions)

	assert.Equal(t, []string{
		"Use more visual aids, pictures, and colorful materials",
		"Incorporate drawing and visual mapping activities",
		"Ready to advance in math - introduce new challenges",
		"Consider review and reinforcement in reading",
		"Break down reading concepts into smaller steps",
		"Ready to advance in spelling - introduce new challenges",
		"Use very short activities (1-2 minutes) with frequent changes",
	}, a.Recommendations)

	assert.Equal(t, 100, a.Readiness.MathematicalThinking.Score)
	assert.Equal(t, "Basic addition", a.Readiness.MathematicalThinking.ReadyFor)
	assert.Equal(t, 42, a.Readiness.ReadingReadiness.Score)
	assert.Equal(t, 71.0, a.Readiness.OverallScore)
	assert.Equal(t, "Meets kindergarten expectations", a.Readiness.Level)
}

func TestAssessFrustratedStudent(t *testing.T) {
	p := student.New("Ivy", 5)
	p.LearningStyle = student.LearningStyle{Visual: 0.2, Auditory: 0.5, Kinesthetic: 0.3}
	p.Progress[student.Math] = &student.Progress{Level: 1, Attempts: 6, Successes: 2}
	p.Engagement = student.Engagement{
		AttentionSpan:         4 * time.Minute,
		PositiveResponses:     2,
		NegativeResponses:     4,
		FrustrationIndicators: 3,
	}
	delete(p.Progress, student.Reading)

	a := Assess(p, assessedAt)

	assert.Equal(t, "May need support", a.Engagement.Level)
	assert.True(t, a.Engagement.NeedsEncouragement)
	assert.Len(t, a.Progress, 3)
	assert.Equal(t, "Needs support", a.Progress[0].Mastery)
	assert.Equal(t, "Continue at current level", a.Progress[0].NextLevelReady)

	assert.Equal(t, []string{
		"Include more songs, rhymes, and verbal instructions",
		"Use storytelling and discussion-based learning",
		"Consider review and reinforcement in math",
		"Break down math concepts into smaller steps",
		"Provide extra encouragement and celebrate small victories",
		"Consider shorter learning sessions with more breaks",
		"Break lessons into 3-5 minute segments",
	}, a.Recommendations)

	// 2/6 correct at level 1: 16.67 + 30
	assert.Equal(t, 46, a.Readiness.MathematicalThinking.Score)
	assert.Equal(t, 0, a.Readiness.ReadingReadiness.Score)
	assert.Equal(t, "Needs additional support", a.Readiness.Level)
}

func TestAssessmentReport(t *testing.T) {
	p := student.New("Leo", 6)
	p.Progress[student.Math] = &student.Progress{Level: 2, Attempts: 4, Successes: 3}
	p.Engagement.PositiveResponses = 3
	p.Engagement.NegativeResponses = 1

	report := Assess(p, assessedAt).Report()

	for _, want := range []string{
		"KINDERGARTEN LEARNING PROGRESS REPORT",
		"Student: Leo",
		"Date: 2025-05-02",
		"Primary Learning Style: Kinesthetic",
		"Attention Span: 5 minutes",
		"Preferred Subjects: math",
		"MATH:\n  Current Level: 2 - Counting 1-10, simple addition (1+1, 2+1)",
		"Mastery Status: Proficient",
		"Success Rate: 75.0% (4 attempts)",
		"Overall Engagement: Well engaged",
		"Positive Response Rate: 75.0%",
		"Overall Level: Meets kindergarten expectations",
		"Math Readiness: 97/100",
		"1. Provide hands-on activities and movement-based learning",
		"2. Use manipulatives and interactive games",
	} {
		assert.Contains(t, report, want)
	}
	assert.NotContains(t, report, "Needs Encouragement")
}

func TestTutorAssess(t *testing.T) {
	tu, c := newTutor(t)

	_, err := tu.Assess("Mia")
	assert.ErrorIs(t, err, ErrUnknownStudent)
	_, err = tu.Assess("  ")
	assert.ErrorIs(t, err, ErrUnknownStudent)

	s, _, err := tu.StartSession("Mia")
	require.NoError(t, err)
	_, _, err = tu.Respond(s.ID, "I want to learn math")
	require.NoError(t, err)
	_, _, err = tu.Respond(s.ID, "4")
	require.NoError(t, err)

	live, err := tu.Assess("mia")
	require.NoError(t, err)
	assert.Equal(t, "Mia", live.StudentName)
	assert.Equal(t, c.t, live.Date)
	assert.Equal(t, 1, live.Progress[0].Attempts)

	_, err = tu.EndSession(s.ID)
	require.NoError(t, err)

	c.t = c.t.Add(24 * time.Hour)
	stored, err := tu.Assess("Mia")
	require.NoError(t, err)
	assert.Equal(t, live.StudentID, stored.StudentID)
	assert.Equal(t, 1, stored.TotalSessions)
	assert.Equal(t, 1, stored.Progress[0].Attempts)
	assert.Equal(t, "2025-03-02", stored.Date.Format("2006-01-02"))
}
