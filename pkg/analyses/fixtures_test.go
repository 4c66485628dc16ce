package analyses

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/tts-survey-eval/pkg/cache"
	"github.com/example/tts-survey-eval/pkg/config"
)

// row is one participant of a generated survey export.
type row struct {
	gender, age, proficiency int
	// realism is written verbatim, so "" yields a missing rating.
	realism string
	// choices holds best and worst for Q1..Q24.
	choices [24][2]int
}

func writeSurvey(t *testing.T, rows []row) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("ID")
	for q := 1; q <= 24; q++ {
		fmt.Fprintf(&b, ",Q%d", q)
	}
	b.WriteString(",Geschlecht,Altersgruppe,Englischkenntnisse,Realismus\n")
	for i, r := range rows {
		fmt.Fprintf(&b, "%d", i+1)
		for _, c := range r.choices {
			fmt.Fprintf(&b, ",\"%d,%d\"", c[0], c[1])
		}
		fmt.Fprintf(&b, ",%d,%d,%d,%s\n", r.gender, r.age, r.proficiency, r.realism)
	}
	path := filepath.Join(t.TempDir(), "Survey_Entries.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func demographics(p int) row {
	return row{
		gender:      1 + p%2,
		age:         1 + p%4,
		proficiency: 1 + p%3,
		realism:     fmt.Sprint(1 + (p*7)%5),
	}
}

// preferenceRows makes EmoSpeech the best pick on every question. The worst
// pick rotates over the other three systems, so within any three consecutive
// questions each of them is worst exactly once.
func preferenceRows(n int) []row {
	others := []int{1, 3, 4}
	rows := make([]row, n)
	for p := range rows {
		rows[p] = demographics(p)
		for q := range rows[p].choices {
			rows[p].choices[q] = [2]int{2, others[(p+q)%3]}
		}
	}
	return rows
}

// randomRows draws best and worst uniformly from a seeded generator.
func randomRows(n int, seed uint64) []row {
	rng := rand.New(rand.NewPCG(seed, seed))
	rows := make([]row, n)
	for p := range rows {
		rows[p] = demographics(p)
		for q := range rows[p].choices {
			best := 1 + rng.IntN(4)
			worst := 1 + rng.IntN(3)
			if worst >= best {
				worst++
			}
			rows[p].choices[q] = [2]int{best, worst}
		}
	}
	return rows
}

func testConfig(t *testing.T, surveyPath string) config.Config {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Files.Survey = surveyPath
	cfg.Statistics.MonteCarloPerms = 200
	cfg.Statistics.BootstrapReps = 200
	cfg.Plot.DPI = 50
	return cfg
}

func newTestEnv(t *testing.T, rows []row) *Env {
	t.Helper()
	return NewEnv(zaptest.NewLogger(t), testConfig(t, writeSurvey(t, rows)), nil)
}

// memoryCache is a JSON round-tripping ResultCache that counts hits.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMemoryCache() *memoryCache { return &memoryCache{data: make(map[string][]byte)} }

func (c *memoryCache) Get(_ context.Context, key string, dst any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(b, dst)
}

func (c *memoryCache) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}
