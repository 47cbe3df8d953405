package tutor

import (
	"strings"
	"testing"
	"time"

	"teacher1/datamodel/student"
	"teacher1/datastore/leveldb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTutor(t *testing.T) (*Tutor, *clock) {
	t.Helper()
	idx, err := leveldb.NewProfileIndex(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	tu := New(idx, 3)
	tu.now = c.now
	return tu, c
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		text    string
		intent  intent
		subject student.Subject
	}{
		{"Hello!", intentGreeting, ""},
		{"good morning teacher", intentGreeting, ""},
		{"I don't know", intentHelp, ""},
		{"can you HELP me", intentHelp, ""},
		{"I want to learn math", intentLesson, student.Math},
		{"let's add things", intentLesson, student.Math},
		{"I like to read", intentLesson, student.Reading},
		{"spelling please", intentLesson, student.Spelling},
		{"more counting", intentLesson, student.Numbers},
		{"this is hard", intentEncourage, ""},
		{"I can't", intentEncourage, ""},
		{"think it is 4", intentAnswer, ""},
	}
	for _, tt := range tests {
		got, sub := analyze(tt.text)
		assert.Equal(t, tt.intent, got, tt.text)
		assert.Equal(t, tt.subject, sub, tt.text)
	}
}

func TestEvaluate(t *testing.T) {
	assert.True(t, evaluate(student.Math, "it is 4"))
	assert.True(t, evaluate(student.Reading, "b"))
	assert.True(t, evaluate(student.Numbers, ",,,"))
	assert.True(t, evaluate(student.Math, "four"))
	assert.False(t, evaluate(student.Math, "   "))
}

func TestLessonFlow(t *testing.T) {
	tu, c := newTutor(t)

	s, greet, err := tu.StartSession("Emma")
	require.NoError(t, err)
	assert.Equal(t, "Hey Emma! Let's have fun learning together today! We can play games and try new activities!", greet)
	assert.Equal(t, 1, tu.ActiveSessions())
	assert.Equal(t, "Emma", s.StudentName())

	reply, meta, err := tu.Respond(s.ID, "I want to learn math")
	require.NoError(t, err)
	assert.True(t, meta.LessonStarted)
	assert.Equal(t, student.Math, meta.Subject)
	assert.True(t, strings.HasPrefix(reply, "Here's a fun math challenge for you! "), reply)
	assert.True(t, strings.HasSuffix(reply, "You can use your fingers or draw if it helps!"), reply)

	c.t = c.t.Add(10 * time.Second)
	reply, meta, err = tu.Respond(s.ID, "4")
	require.NoError(t, err)
	assert.True(t, meta.AnswerProcessed)
	assert.True(t, meta.Correct)
	assert.True(t, strings.HasSuffix(reply, " Ready for another math challenge?"), reply)
	assert.NotContains(t, reply, "%s")

	// nothing pending any more
	reply, meta, err = tu.Respond(s.ID, "7")
	require.NoError(t, err)
	assert.Contains(t, adaptiveResponses, reply)
	assert.False(t, meta.Correct)

	reply, meta, err = tu.Respond(s.ID, "this is boring")
	require.NoError(t, err)
	assert.True(t, meta.EncouragementProvided)
	assert.NotEmpty(t, reply)

	reply, _, err = tu.Respond(s.ID, "help")
	require.NoError(t, err)
	assert.Contains(t, helpResponses, reply)

	sum, err := tu.Progress(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Emma", sum.Name)
	assert.Equal(t, 1, sum.Progress[student.Math].Attempts)
	assert.Equal(t, 1, sum.TotalSessions)
	assert.False(t, sum.NeedsEncouragement)

	bye, err := tu.EndSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Great job today, Emma! You worked on math and did wonderful! I can't wait to learn with you again!", bye)
	assert.Equal(t, 0, tu.ActiveSessions())

	// returning learner, loaded from the index
	s2, greet, err := tu.StartSession("emma")
	require.NoError(t, err)
	assert.Equal(t, "Hi Emma! Great to see you again! Last time we worked on math. What would you like to learn today?", greet)

	sum, err = tu.Progress(s2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalSessions)
	assert.Equal(t, 1, sum.Progress[student.Math].Successes)
}

func TestBreakSuggestion(t *testing.T) {
	tu, c := newTutor(t)
	s, _, err := tu.StartSession("Leo")
	require.NoError(t, err)

	c.t = c.t.Add(6 * time.Minute)
	reply, meta, err := tu.Respond(s.ID, "math")
	require.NoError(t, err)
	assert.True(t, meta.BreakSuggested)
	assert.Contains(t, breakSuggestions, reply)
}

func TestEndWithoutActivities(t *testing.T) {
	tu, _ := newTutor(t)
	s, _, err := tu.StartSession("Mia")
	require.NoError(t, err)

	bye, err := tu.EndSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thanks for spending time with me, Mia! Come back soon and we'll learn lots of fun things together!", bye)
}

func TestUnknownSession(t *testing.T) {
	tu, _ := newTutor(t)

	reply, _, err := tu.Respond("nope", "hi")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, AskName, reply)

	_, err = tu.EndSession("nope")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = tu.Progress("nope")
	assert.ErrorIs(t, err, ErrNoSession)

	_, _, err = tu.StartSession("  ")
	assert.Error(t, err)
}

func TestLessonStyleFollowsProfile(t *testing.T) {
	tu, _ := newTutor(t)
	s, _, err := tu.StartSession("Ava")
	require.NoError(t, err)

	s.profile.LearningStyle = student.LearningStyle{Auditory: 1}
	reply, _, err := tu.Respond(s.ID, "let's read")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "Listen carefully to this reading question: "), reply)

	s.profile.LearningStyle = student.LearningStyle{Visual: 1}
	reply, _, err = tu.Respond(s.ID, "spell")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "Let's look at this spelling question together! "), reply)
}
