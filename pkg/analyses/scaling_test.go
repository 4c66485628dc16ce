package analyses

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/bws"
	"github.com/example/tts-survey-eval/pkg/survey"
)

func TestGenerateLongRows(t *testing.T) {
	env := newTestEnv(t, randomRows(10, 1))
	ctx := context.Background()

	res, err := GenerateLongRows(ctx, env)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)

	// 10 participants x 24 questions x best and worst.
	assert.Equal(t, 480, res.Files[0].Rows)
	assert.Equal(t, 240, res.Files[1].Rows)
	assert.Equal(t, 240, res.Files[2].Rows)

	f, err := os.Open(res.Files[1].Artifact.Path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := survey.ReadLongCSV(f)
	require.NoError(t, err)
	require.Len(t, recs, 240)
	for _, r := range recs {
		assert.Equal(t, survey.Congruent, r.Congruence)
	}

	// Rerunning produces byte-identical files.
	again, err := GenerateLongRows(ctx, env)
	require.NoError(t, err)
	for i := range res.Files {
		assert.Equal(t, res.Files[i].Artifact.Checksum, again.Files[i].Artifact.Checksum)
	}

	var out bytes.Buffer
	require.NoError(t, res.Render(&out))
	assert.Contains(t, out.String(), "Wrote 480 long-format rows")
}

func TestBestWorstScaling(t *testing.T) {
	env := newTestEnv(t, preferenceRows(6))
	res, err := BestWorstScaling(context.Background(), env)
	require.NoError(t, err)

	require.Len(t, res.Questions, 24)
	require.Len(t, res.Groups, 8)
	for _, q := range res.Questions {
		assert.Equal(t, 6, q.Scores[survey.EmoSpeech], q.Question.ID)
	}

	// Group scores equal the sum of their questions' scores.
	byID := make(map[string]bws.NetScores)
	for _, q := range res.Questions {
		byID[q.Question.ID] = q.Scores
	}
	for _, g := range res.Groups {
		sum := bws.NewNetScores()
		for _, id := range g.Group.Questions {
			sum.Add(byID[id])
		}
		assert.Equal(t, sum, g.Scores, g.Group.Name)
	}
	// Each of the other systems is worst once per participant in a group.
	assert.Equal(t, bws.NetScores{
		survey.CosyVoice: -6, survey.EmoSpeech: 18, survey.EmoKnob: -6, survey.EmotiVoice: -6,
	}, res.Groups[0].Scores)

	data, err := os.ReadFile(res.Artifact.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Q1 - Happy (Congruent)\nVoice System\tBest - Worst (Net Score)\nCosyVoice\t")
	assert.Contains(t, string(data), "Surprised Incongruent - Aggregated MaxDiff Net Scores")
}

func TestDemographicBWSZeroFillsEmptyStrata(t *testing.T) {
	env := newTestEnv(t, preferenceRows(6))
	res, err := DemographicBWS(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, res.Sections, 3)

	gender := res.Sections[0]
	assert.Equal(t, survey.Gender.Column, gender.Demographic.Column)
	require.Len(t, gender.Strata, 3)
	assert.Equal(t, 3, gender.Strata[0].N)
	assert.Equal(t, 3, gender.Strata[1].N)

	diverse := gender.Strata[2]
	assert.Equal(t, "Diverse", diverse.Label)
	assert.Equal(t, 0, diverse.N)
	assert.Equal(t, bws.NewNetScores(), diverse.Overall)
	for _, g := range diverse.Groups {
		assert.Equal(t, bws.NewNetScores(), g.Scores)
	}

	// Three congruent questions per emotion, three men: EmoSpeech scores 9
	// per emotion.
	for _, g := range gender.Strata[0].Groups {
		assert.Equal(t, survey.QuestionsFor(survey.Emotion(g.Group.Name), survey.Congruent), g.Group.Questions)
		assert.Equal(t, 9, g.Scores[survey.EmoSpeech], g.Group.Name)
	}
	assert.Equal(t, 36, gender.Strata[0].Overall[survey.EmoSpeech])

	data, err := os.ReadFile(res.Artifact.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Geschlecht: Diverse (N=0)")

	manifest := env.Outputs.Manifest()
	require.Len(t, manifest.Outputs, 1)
	sum, _, err := evaluation.ComputeChecksum(res.Artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, sum, manifest.Outputs[0].Checksum)
}

func TestFlipScoringIsOptIn(t *testing.T) {
	env := newTestEnv(t, preferenceRows(6))
	env.Config.Scoring = string(bws.ScoringFlipIncongruent)

	res, err := DemographicBWS(context.Background(), env)
	require.NoError(t, err)
	// The flipped variant spans all six questions: congruent +9 and
	// incongruent -9 cancel for the men.
	men := res.Sections[0].Strata[0].Groups[0]
	assert.Len(t, men.Group.Questions, 6)
	assert.Equal(t, 0, men.Scores[survey.EmoSpeech])

	env.Config.Scoring = "reversed"
	_, err = BestWorstScaling(context.Background(), env)
	assert.Error(t, err)
}
