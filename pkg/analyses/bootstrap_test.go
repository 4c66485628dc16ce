package analyses

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/survey"
)

func TestAnalyseBootstrapPreference(t *testing.T) {
	env := newTestEnv(t, preferenceRows(10))
	ctx := context.Background()
	_, err := GenerateLongRows(ctx, env)
	require.NoError(t, err)

	res, err := AnalyseBootstrap(ctx, env)
	require.NoError(t, err)
	require.Len(t, res.Tables, 2)
	assert.Equal(t, evaluation.BootstrapBCa, res.Method)

	for _, table := range res.Tables {
		// 4 emotions x 6 system pairs.
		require.Len(t, table.Comparisons, 24)
		for _, c := range table.Comparisons {
			assert.Equal(t, 10, c.N)
			// Every participant nets +3 for EmoSpeech and -1 for the others,
			// so the paired differences are constant.
			switch {
			case c.System1 == "EmoSpeech":
				assert.Equal(t, 4.0, c.Delta)
			case c.System2 == "EmoSpeech":
				assert.Equal(t, -4.0, c.Delta)
			default:
				assert.Equal(t, 0.0, c.Delta)
			}
			assert.Equal(t, c.Delta, c.Low)
			assert.Equal(t, c.Delta, c.High)
			assert.Equal(t, c.Delta != 0, c.Significant)
			if c.Significant {
				// Twelve pseudo p-values of 0.001 among 24: Holm gives 24 x 0.001.
				assert.InDelta(t, 0.024, c.PAdjusted, 1e-12)
			} else {
				assert.Equal(t, 1.0, c.PAdjusted)
			}
		}
	}

	f, err := os.Open(res.Tables[0].Artifact.Path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 25)
	assert.Equal(t, BootstrapHeader, records[0])
	assert.Equal(t, []string{"Happy", "CosyVoice", "EmoSpeech", "-4", "-4", "-4", "True", "0.024"}, records[1])

	var out bytes.Buffer
	require.NoError(t, res.Render(&out))
	assert.Contains(t, out.String(), "Bootstrap results Congruent (bca, 200 reps, 95% CI)")
}

func TestAnalyseBootstrapNeedsLongFiles(t *testing.T) {
	env := newTestEnv(t, preferenceRows(4))
	_, err := AnalyseBootstrap(context.Background(), env)
	assert.Error(t, err)
}

func TestAnalyseBootstrapUsesCache(t *testing.T) {
	env := newTestEnv(t, randomRows(15, 8))
	mc := newMemoryCache()
	env.Cache = mc
	ctx := context.Background()
	_, err := GenerateLongRows(ctx, env)
	require.NoError(t, err)

	first, err := AnalyseBootstrap(ctx, env)
	require.NoError(t, err)
	second, err := AnalyseBootstrap(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, 2, mc.hits)
	for i := range first.Tables {
		assert.Equal(t, first.Tables[i].Comparisons, second.Tables[i].Comparisons)
		assert.Equal(t, first.Tables[i].Artifact.Checksum, second.Tables[i].Artifact.Checksum)
	}
}

func TestCompareSystemsPercentileIsReproducible(t *testing.T) {
	env := newTestEnv(t, randomRows(12, 6))
	ds, err := env.Survey(context.Background())
	require.NoError(t, err)
	recs := survey.FilterCongruence(survey.ToLong(ds), survey.Incongruent)

	logger := zaptest.NewLogger(t)
	a, err := CompareSystems(context.Background(), logger, recs, 300, 0.9, evaluation.BootstrapPercentile, 42, "holm")
	require.NoError(t, err)
	b, err := CompareSystems(context.Background(), logger, recs, 300, 0.9, evaluation.BootstrapPercentile, 42, "holm")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	for _, c := range a {
		assert.LessOrEqual(t, c.Low, c.High)
	}
}

func TestAnalyseBootstrapCachesSkippedComparisons(t *testing.T) {
	// A single participant leaves every comparison with one pair.
	env := newTestEnv(t, randomRows(1, 3))
	mc := newMemoryCache()
	env.Cache = mc
	ctx := context.Background()
	_, err := GenerateLongRows(ctx, env)
	require.NoError(t, err)

	first, err := AnalyseBootstrap(ctx, env)
	require.NoError(t, err)
	for _, c := range first.Tables[0].Comparisons {
		assert.True(t, c.Skipped)
		assert.False(t, c.Significant)
		assert.Equal(t, 1.0, c.PAdjusted)
	}
	_, err = json.Marshal(first.Tables[0].Comparisons)
	require.NoError(t, err)

	second, err := AnalyseBootstrap(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, 2, mc.hits)
	assert.Equal(t, first.Tables[1].Comparisons, second.Tables[1].Comparisons)

	f, err := os.Open(first.Tables[0].Artifact.Path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Happy", "CosyVoice", "EmoSpeech", "", "", "", "False", "1"}, records[1])

	var out bytes.Buffer
	require.NoError(t, first.Render(&out))
	assert.Contains(t, out.String(), "skipped: too few participants")
}
