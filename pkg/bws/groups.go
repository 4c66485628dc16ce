package bws

import (
	"fmt"
	"sort"

	"github.com/example/tts-survey-eval/pkg/survey"
)

// Scoring selects how the questions of a group are weighted.
type Scoring string

const (
	// ScoringPlain counts every pick with weight one.
	ScoringPlain Scoring = "plain"
	// ScoringFlipIncongruent inverts the sign of the second half of a group's
	// questions. Whether this variant is the intended analysis is unresolved;
	// it is only used when asked for explicitly.
	ScoringFlipIncongruent Scoring = "flip-incongruent"
)

// ParseScoring validates a scoring name.
func ParseScoring(s string) (Scoring, error) {
	switch Scoring(s) {
	case "", ScoringPlain:
		return ScoringPlain, nil
	case ScoringFlipIncongruent:
		return ScoringFlipIncongruent, nil
	}
	return "", fmt.Errorf("unknown scoring %q", s)
}

func (s Scoring) weights(questions []string) []int {
	w := make([]int, len(questions))
	half := len(questions) / 2
	for i := range w {
		w[i] = 1
		if s == ScoringFlipIncongruent && i >= half {
			w[i] = -1
		}
	}
	return w
}

// Group is a named set of questions scored together.
type Group struct {
	Name      string
	Questions []string
}

// EmotionCongruenceGroups returns the eight "<Emotion> <Congruence>" groups.
func EmotionCongruenceGroups() []Group {
	var gs []Group
	for _, e := range survey.Emotions {
		for _, c := range survey.Congruences {
			gs = append(gs, Group{
				Name:      fmt.Sprintf("%s %s", e, c),
				Questions: survey.QuestionsFor(e, c),
			})
		}
	}
	return gs
}

// EmotionGroups returns one group per emotion restricted to conds (all six
// questions of the emotion when conds is empty).
func EmotionGroups(conds ...survey.Congruence) []Group {
	gs := make([]Group, 0, len(survey.Emotions))
	for _, e := range survey.Emotions {
		gs = append(gs, Group{Name: string(e), Questions: survey.QuestionsFor(e, conds...)})
	}
	return gs
}

// DemographicGroups returns the emotion groups of the demographic report.
// Plain scoring uses the three congruent questions of each emotion. The
// flipped variant needs all six so that the incongruent half can be inverted.
func DemographicGroups(s Scoring) []Group {
	if s == ScoringFlipIncongruent {
		return EmotionGroups()
	}
	return EmotionGroups(survey.Congruent)
}

// QuestionScore is the net score table of one question.
type QuestionScore struct {
	Question survey.Question
	Scores   NetScores
}

// PerQuestion scores every question column of ds separately.
func PerQuestion(ds *survey.Dataset) []QuestionScore {
	out := make([]QuestionScore, 0, len(ds.QuestionIDs))
	for _, qid := range ds.QuestionIDs {
		q, _ := survey.LookupQuestion(qid)
		out = append(out, QuestionScore{
			Question: q,
			Scores:   Aggregate(Decisions(ds.Responses, []string{qid}, ScoringPlain)),
		})
	}
	return out
}

// GroupScore is the pooled net score table of one group.
type GroupScore struct {
	Group  Group
	Scores NetScores
}

// PerGroup scores each group by summing its per-question scores.
func PerGroup(responses []survey.Response, groups []Group, scoring Scoring) []GroupScore {
	out := make([]GroupScore, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupScore{
			Group:  g,
			Scores: Aggregate(Decisions(responses, g.Questions, scoring)),
		})
	}
	return out
}

// Stratum holds the scores of the participants sharing one demographic code.
type Stratum struct {
	Code    int
	Label   string
	N       int
	Groups  []GroupScore
	Overall NetScores
}

// Stratify scores groups separately for every label of d. Labels without any
// participant still get a stratum with all-zero scores.
func Stratify(ds *survey.Dataset, d survey.Demographic, groups []Group, scoring Scoring) []Stratum {
	out := make([]Stratum, 0, len(d.Labels))
	for _, code := range d.Codes() {
		var subset []survey.Response
		for _, r := range ds.Responses {
			if d.Code(r) == code {
				subset = append(subset, r)
			}
		}
		st := Stratum{
			Code:    code,
			Label:   d.Labels[code],
			N:       len(subset),
			Groups:  PerGroup(subset, groups, scoring),
			Overall: NewNetScores(),
		}
		for _, g := range st.Groups {
			st.Overall.Add(g.Scores)
		}
		out = append(out, st)
	}
	return out
}

// ParticipantKey identifies one participant's net score cell.
type ParticipantKey struct {
	Participant int
	System      survey.System
	Emotion     survey.Emotion
}

// ParticipantNet computes best minus worst per participant, system and emotion.
// Every participant that answered an emotion gets a cell for all four systems.
func ParticipantNet(recs []survey.LongRecord) map[ParticipantKey]int {
	out := make(map[ParticipantKey]int)
	for _, r := range recs {
		for _, s := range survey.Systems {
			k := ParticipantKey{Participant: r.Participant, System: s, Emotion: r.Emotion}
			if _, ok := out[k]; !ok {
				out[k] = 0
			}
		}
		k := ParticipantKey{Participant: r.Participant, System: r.System, Emotion: r.Emotion}
		if r.IsBest() {
			out[k]++
		} else {
			out[k]--
		}
	}
	return out
}

// Participants returns the sorted ids of participants that answered emotion e.
func Participants(net map[ParticipantKey]int, e survey.Emotion) []int {
	seen := make(map[int]struct{})
	for k := range net {
		if k.Emotion == e {
			seen[k.Participant] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
