package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/cache"
	"github.com/example/tts-survey-eval/pkg/metrics"
	"github.com/example/tts-survey-eval/pkg/survey"
)

// FriedmanCell is the Friedman test of one gender, congruence and emotion.
type FriedmanCell struct {
	Emotion survey.Emotion            `json:"emotion"`
	Result  evaluation.FriedmanResult `json:"result"`
	Ties    evaluation.Ties           `json:"ties"`
	// Skipped explains why no statistic could be computed.
	Skipped string                      `json:"skipped,omitempty"`
	PostHoc []evaluation.PairwiseResult `json:"postHoc,omitempty"`
	// PostHocRun is set when the omnibus test was significant.
	PostHocRun bool `json:"postHocRun"`
}

// FriedmanBlock holds the cells of one gender and congruence condition.
type FriedmanBlock struct {
	Gender     string            `json:"gender"`
	Congruence survey.Congruence `json:"congruence"`
	Cells      []FriedmanCell    `json:"cells"`
}

// FriedmanGenderResult holds every block in report order.
type FriedmanGenderResult struct {
	Alpha  float64         `json:"alpha"`
	Blocks []FriedmanBlock `json:"blocks"`
}

// systemsByLabel returns the systems ordered alphabetically by label.
func systemsByLabel() []survey.System {
	out := append([]survey.System(nil), survey.Systems...)
	sort.Slice(out, func(i, j int) bool { return out[i].Label() < out[j].Label() })
	return out
}

// emotionsByName returns the emotions in alphabetical order.
func emotionsByName() []survey.Emotion {
	out := append([]survey.Emotion(nil), survey.Emotions...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// genderOrder returns the known gender codes in order of first appearance.
func genderOrder(responses []survey.Response) []int {
	var codes []int
	seen := make(map[int]bool)
	for _, r := range responses {
		if _, ok := survey.Gender.Label(r.Gender); !ok || seen[r.Gender] {
			continue
		}
		seen[r.Gender] = true
		codes = append(codes, r.Gender)
	}
	return codes
}

// scoreMatrix returns one row per participant holding the net score of each
// system over questions, with systems in the given order.
func scoreMatrix(responses []survey.Response, questions []string, systems []survey.System) [][]float64 {
	col := make(map[survey.System]int, len(systems))
	for j, s := range systems {
		col[s] = j
	}
	data := make([][]float64, 0, len(responses))
	for _, r := range responses {
		row := make([]float64, len(systems))
		for _, q := range questions {
			c, ok := r.Choices[q]
			if !ok {
				continue
			}
			row[col[c.Best]]++
			row[col[c.Worst]]--
		}
		data = append(data, row)
	}
	return data
}

// columns transposes data into one slice per system.
func columns(data [][]float64, k int) [][]float64 {
	out := make([][]float64, k)
	for _, row := range data {
		for j, v := range row {
			out[j] = append(out[j], v)
		}
	}
	return out
}

// FriedmanGender runs a Friedman test over the participants' per-system net
// scores for every gender, congruence condition and emotion. Small or heavily
// tied blocks get a Monte-Carlo p-value; significant results are followed by
// Dunn's test.
func FriedmanGender(ctx context.Context, env *Env) (*FriedmanGenderResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	st := env.Config.Statistics
	key := cache.Key("friedman-gender", env.inputChecksum(),
		st.Seed, st.MonteCarloPerms, st.MonteCarloMinN, st.MonteCarloTiePercent, st.SignificanceLevel, st.PostHocAdjust)

	return cache.Fetch(ctx, env.Cache, env.Logger, key, func() (*FriedmanGenderResult, error) {
		return friedmanGender(ctx, env, ds)
	})
}

func friedmanGender(ctx context.Context, env *Env, ds *survey.Dataset) (*FriedmanGenderResult, error) {
	st := env.Config.Statistics
	rng := env.Analyzer.Rand()
	systems := systemsByLabel()
	names := make([]string, len(systems))
	for i, s := range systems {
		names[i] = s.Label()
	}

	res := &FriedmanGenderResult{Alpha: st.SignificanceLevel}
	for _, code := range genderOrder(ds.Responses) {
		label, _ := survey.Gender.Label(code)
		var members []survey.Response
		for _, r := range ds.Responses {
			if r.Gender == code {
				members = append(members, r)
			}
		}
		for _, cong := range survey.Congruences {
			block := FriedmanBlock{Gender: label, Congruence: cong}
			for _, e := range emotionsByName() {
				data := scoreMatrix(members, survey.QuestionsFor(e, cong), systems)
				cell, err := friedmanCell(ctx, env, data, names, rng)
				if err != nil {
					return nil, fmt.Errorf("%s/%s/%s: %w", label, cong, e, err)
				}
				cell.Emotion = e
				block.Cells = append(block.Cells, cell)
			}
			res.Blocks = append(res.Blocks, block)
		}
	}
	return res, nil
}

func friedmanCell(ctx context.Context, env *Env, data [][]float64, names []string, rng *rand.Rand) (FriedmanCell, error) {
	st := env.Config.Statistics
	cell := FriedmanCell{Ties: evaluation.TieStats(data)}

	useMC := len(data) < st.MonteCarloMinN || cell.Ties.Percent > st.MonteCarloTiePercent
	var (
		fr  evaluation.FriedmanResult
		err error
	)
	if useMC {
		fr, err = evaluation.FriedmanMonteCarlo(ctx, data, st.MonteCarloPerms, rng)
	} else {
		fr, err = evaluation.Friedman(data)
	}
	if errors.Is(err, evaluation.ErrInsufficientData) {
		env.Logger.Warn("Skipping Friedman test", zap.Int("blocks", len(data)), zap.Error(err))
		cell.Result = fr
		cell.Skipped = err.Error()
		return cell, nil
	}
	if err != nil {
		return cell, err
	}
	metrics.RecordTest("friedman-gender", "friedman")
	cell.Result = fr

	if fr.P < st.SignificanceLevel {
		cell.PostHocRun = true
		pairs, err := evaluation.Dunn(names, columns(data, len(names)), st.PostHocAdjust)
		if err != nil {
			return cell, fmt.Errorf("post hoc: %w", err)
		}
		metrics.RecordTest("friedman-gender", "dunn")
		for _, p := range pairs {
			if p.P < st.SignificanceLevel {
				cell.PostHoc = append(cell.PostHoc, p)
			}
		}
	}
	return cell, nil
}

// Render prints one section per gender and congruence condition.
func (r *FriedmanGenderResult) Render(w io.Writer) error {
	for _, b := range r.Blocks {
		fmt.Fprintf(w, "\nGender: %s  |  %s\n", b.Gender, b.Congruence)
		for _, c := range b.Cells {
			fr := c.Result
			if c.Skipped != "" {
				fmt.Fprintf(w, "  Emotion: %-9s not computable (%s)\n", c.Emotion, c.Skipped)
				continue
			}
			note := "asymptotic"
			if fr.MonteCarlo {
				note = "Monte-Carlo"
			}
			fmt.Fprintf(w, "  Emotion: %-9s χ²(%d) = %.3f, p = %.4f (%s), W = %.3f, Ties: %d/%d (%.1f %%)\n",
				c.Emotion, fr.K-1, fr.Chi2, fr.P, note, fr.W(), c.Ties.Tied, c.Ties.Rows, c.Ties.Percent)
			if !c.PostHocRun {
				continue
			}
			if len(c.PostHoc) == 0 {
				fmt.Fprintln(w, "    No significant pairs")
				continue
			}
			fmt.Fprintln(w, "    Significant pairs:")
			for _, p := range c.PostHoc {
				fmt.Fprintf(w, "      - %s vs %s: p = %.4f\n", p.A, p.B, p.P)
			}
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
