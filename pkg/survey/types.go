package survey

import (
	"fmt"
	"strings"
)

// System identifies one of the four TTS voice systems compared in the survey.
type System int

const (
	CosyVoice  System = 1
	EmoSpeech  System = 2
	EmoKnob    System = 3
	EmotiVoice System = 4
)

// Systems lists the known systems in id order.
var Systems = []System{CosyVoice, EmoSpeech, EmoKnob, EmotiVoice}

var systemLabels = map[System]string{
	CosyVoice:  "CosyVoice",
	EmoSpeech:  "EmoSpeech",
	EmoKnob:    "EmoKnob",
	EmotiVoice: "EmotiVoice",
}

// Valid reports whether s is one of the four known systems.
func (s System) Valid() bool {
	_, ok := systemLabels[s]
	return ok
}

// Label returns the display name of the system.
func (s System) Label() string {
	if l, ok := systemLabels[s]; ok {
		return l
	}
	return fmt.Sprintf("System(%d)", int(s))
}

func (s System) String() string { return s.Label() }

// ParseSystemLabel maps a display name back to its System.
func ParseSystemLabel(label string) (System, error) {
	label = strings.TrimSpace(label)
	for s, l := range systemLabels {
		if l == label {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown system label %q", label)
}

// Emotion is the emotion an utterance was asked to convey.
type Emotion string

const (
	Happy     Emotion = "Happy"
	Sad       Emotion = "Sad"
	Angry     Emotion = "Angry"
	Surprised Emotion = "Surprised"
)

// Emotions lists the emotions in questionnaire order.
var Emotions = []Emotion{Happy, Sad, Angry, Surprised}

// Congruence tells whether the expressed emotion matches the semantic content.
type Congruence string

const (
	Congruent   Congruence = "Congruent"
	Incongruent Congruence = "Incongruent"
)

// Congruences lists both conditions, congruent first.
var Congruences = []Congruence{Congruent, Incongruent}

// Question is one forced-choice item of the survey.
type Question struct {
	ID         string
	Emotion    Emotion
	Congruence Congruence
}

// Questions is the single question lookup table. Each (emotion, congruence)
// pair owns three consecutive questions.
var Questions = buildQuestions()

func buildQuestions() []Question {
	qs := make([]Question, 0, 24)
	n := 1
	for _, e := range Emotions {
		for _, c := range Congruences {
			for i := 0; i < 3; i++ {
				qs = append(qs, Question{ID: fmt.Sprintf("Q%d", n), Emotion: e, Congruence: c})
				n++
			}
		}
	}
	return qs
}

var questionIndex = func() map[string]Question {
	m := make(map[string]Question, len(Questions))
	for _, q := range Questions {
		m[q.ID] = q
	}
	return m
}()

// LookupQuestion returns the question with the given id.
func LookupQuestion(id string) (Question, bool) {
	q, ok := questionIndex[id]
	return q, ok
}

// QuestionsFor returns the ids of all questions of emotion e, restricted to the
// given congruence conditions (all conditions when none are given), in table order.
func QuestionsFor(e Emotion, conds ...Congruence) []string {
	var ids []string
	for _, q := range Questions {
		if q.Emotion != e {
			continue
		}
		if len(conds) > 0 && !containsCongruence(conds, q.Congruence) {
			continue
		}
		ids = append(ids, q.ID)
	}
	return ids
}

func containsCongruence(cs []Congruence, c Congruence) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

// Choice is the best/worst pair a participant picked for one question.
type Choice struct {
	Best  System
	Worst System
}
