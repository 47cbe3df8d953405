package tutor

import "teacher1/datamodel/student"

type lessonSet struct {
	Questions  []string
	Answers    []string
	Activities []string
}

// kindergarten content by subject and difficulty
var content = map[student.Subject]map[int]lessonSet{
	student.Math: {
		1: {
			Questions: []string{
				"What comes after 3?",
				"Count with me: 1, 2, 3, ?",
				"If you have 2 apples and I give you 1 more, how many do you have?",
				"Show me 5 fingers!",
			},
			Answers:    []string{"4", "4", "3", "5"},
			Activities: []string{"counting", "simple_addition", "number_recognition"},
		},
		2: {
			Questions: []string{
				"What is 2 + 2?",
				"Count backwards from 5: 5, 4, 3, ?",
				"Which is bigger: 6 or 3?",
				"If you have 5 toys and give away 2, how many are left?",
			},
			Answers:    []string{"4", "2", "6", "3"},
			Activities: []string{"addition", "subtraction", "comparison"},
		},
		3: {
			Questions: []string{
				"What is 5 + 3?",
				"What is 10 - 4?",
				"How many sides does a triangle have?",
				"What number is between 7 and 9?",
			},
			Answers:    []string{"8", "6", "3", "8"},
			Activities: []string{"addition", "subtraction", "shapes", "number_patterns"},
		},
	},
	student.Reading: {
		1: {
			Questions: []string{
				"What sound does the letter 'A' make?",
				"Can you find the letter 'B' in the word 'BIG'?",
				"What letter does 'CAT' start with?",
				"Point to the letter 'M' in 'MOM'",
			},
			Answers:    []string{"a", "b", "c", "m"},
			Activities: []string{"letter_recognition", "phonics", "letter_sounds"},
		},
		2: {
			Questions: []string{
				"What word rhymes with 'CAT'?",
				"How many letters are in 'DOG'?",
				"What sound do you hear at the beginning of 'SUN'?",
				"Can you read this word: 'THE'?",
			},
			Answers:    []string{"bat", "3", "s", "the"},
			Activities: []string{"rhyming", "word_length", "beginning_sounds", "sight_words"},
		},
		3: {
			Questions: []string{
				"What is the opposite of 'BIG'?",
				"Can you make a sentence with the word 'HAPPY'?",
				"What sound do you hear in the middle of 'CAT'?",
				"How many words are in 'I like dogs'?",
			},
			Answers:    []string{"small", "varies", "a", "3"},
			Activities: []string{"opposites", "sentence_building", "middle_sounds", "word_counting"},
		},
	},
	student.Spelling: {
		1: {
			Questions: []string{
				"Can you spell 'CAT'?",
				"What letters make 'DOG'?",
				"Spell your name for me!",
				"How do you spell 'MOM'?",
			},
			Answers:    []string{"cat", "dog", "varies", "mom"},
			Activities: []string{"simple_spelling", "name_spelling", "family_words"},
		},
		2: {
			Questions: []string{
				"Can you spell 'FISH'?",
				"How do you spell 'BOOK'?",
				"Spell the word for a small furry pet: 'CAT'",
				"Can you spell 'HAPPY'?",
			},
			Answers:    []string{"fish", "book", "cat", "happy"},
			Activities: []string{"word_spelling", "themed_spelling", "emotion_words"},
		},
	},
	student.Numbers: {
		1: {
			Questions: []string{
				"Can you count to 5?",
				"What number comes before 3?",
				"Show me the number 7!",
				"Count these dots: • • •",
			},
			Answers:    []string{"1,2,3,4,5", "2", "7", "3"},
			Activities: []string{"counting", "number_order", "number_recognition", "dot_counting"},
		},
		2: {
			Questions: []string{
				"Can you count to 10?",
				"What number is missing: 1, 2, _, 4?",
				"Which is smaller: 8 or 5?",
				"Count by 2s: 2, 4, 6, _?",
			},
			Answers:    []string{"1,2,3,4,5,6,7,8,9,10", "3", "5", "8"},
			Activities: []string{"counting_to_ten", "missing_numbers", "number_comparison", "skip_counting"},
		},
	},
}

var encouragement = map[string][]string{
	"high": {
		"You're doing great! Let's try something a little different.",
		"I can see you're working hard! How about we take a fun break?",
		"You're such a good learner! Let's try this together step by step.",
		"Don't worry, learning takes time. You're doing wonderfully!",
	},
	"moderate": {
		"Nice work! You're getting better at this!",
		"Great job! Let's keep going!",
		"You're learning so well! I'm proud of you!",
		"Excellent! You're becoming an expert!",
	},
	"maintain": {
		"Fantastic! You're on fire today!",
		"Wow! You're really good at this!",
		"Amazing work! You're a superstar!",
		"Incredible! You make this look easy!",
	},
}

var (
	quickPraise = []string{
		"Wow! You're so quick and smart!",
		"Amazing! You got that super fast!",
		"Fantastic! You're a %s superstar!",
	}
	carefulPraise = []string{
		"Excellent work! You really thought about that!",
		"Great job! I can see you're thinking carefully!",
		"Perfect! Taking your time helped you get it right!",
	}
	gentleRetry = []string{
		"Good try! Let's work on this together!",
		"That's okay! Learning takes practice!",
		"Nice attempt! Let me help you with this!",
	}
	breakSuggestions = []string{
		"You've been working so hard! How about we take a little break? We can stretch or sing a song!",
		"Great job learning today! Let's take a fun break and then come back to learning!",
		"You're doing amazing! Want to take a quick break? We can play a movement game!",
	}
	helpResponses = []string{
		"I'm here to help you! What would you like to learn about? We can try math, reading, spelling, or numbers!",
		"Of course I'll help! Tell me what you're curious about and we'll learn together!",
		"I love helping! What sounds fun to you today - counting, letters, or maybe some math?",
	}
	adaptiveResponses = []string{
		"That's really interesting! Tell me more!",
		"I love learning new things with you! What else are you thinking about?",
		"You're so smart! What would you like to explore next?",
		"That's a great thought! What would you like to learn about today?",
	}
)

type intent int

const (
	intentAnswer intent = iota
	intentGreeting
	intentHelp
	intentLesson
	intentEncourage
)

// checked in order
var (
	greetingWords = []string{"hi", "hello", "hey", "good morning"}
	helpWords     = []string{"help", "don't know", "confused", "stuck"}
	subjectWords  = []struct {
		subject student.Subject
		words   []string
	}{
		{student.Math, []string{"math", "numbers", "count", "add", "plus"}},
		{student.Reading, []string{"read", "letter", "word", "sound", "phonics"}},
		{student.Spelling, []string{"spell", "spelling", "letters"}},
		{student.Numbers, []string{"number", "counting"}},
	}
	frustrationWords = []string{"hard", "difficult", "can't", "don't want", "boring"}
)
