package analyses

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/config"
	"github.com/example/tts-survey-eval/pkg/survey"
)

// BoxplotResult describes the rendered realism boxplot.
type BoxplotResult struct {
	Artifact *evaluation.Artifact
	Men      int
	Women    int
	DPI      int
}

// ParseHexColor parses a "#RRGGBB" color.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("color %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// realismBoxplot builds the plot of the male and female realism ratings.
func realismBoxplot(m, f []float64, pc config.Plot) (*plot.Plot, error) {
	fill, err := ParseHexColor(pc.FillColor)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Y.Label.Text = "Realism rating (1-5)"

	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	grid.Horizontal.Width = vg.Points(0.5)
	grid.Horizontal.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
	grid.Horizontal.Color = color.Gray{Y: 0xb0}
	p.Add(grid)

	width := vg.Points(40)
	for i, vals := range [][]float64{m, f} {
		box, err := plotter.NewBoxPlot(width, float64(i), plotter.Values(vals))
		if err != nil {
			return nil, fmt.Errorf("boxplot %d: %w", i, err)
		}
		box.FillColor = fill
		p.Add(box)
	}
	p.NominalX(fmt.Sprintf("Male\n(N=%d)", len(m)), fmt.Sprintf("Female\n(N=%d)", len(f)))
	p.Y.Min, p.Y.Max = 1, 5
	return p, nil
}

// GenderBoxplot renders the realism ratings of male and female participants
// as side-by-side boxplots and writes a PNG.
func GenderBoxplot(ctx context.Context, env *Env) (*BoxplotResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	m := survey.RealismFor(ds, survey.Gender, 1)
	f := survey.RealismFor(ds, survey.Gender, 2)
	if len(m) == 0 || len(f) == 0 {
		return nil, fmt.Errorf("boxplot needs ratings from both genders, got %d and %d: %w",
			len(m), len(f), evaluation.ErrInsufficientData)
	}

	pc := env.Config.Plot
	p, err := realismBoxplot(m, f, pc)
	if err != nil {
		return nil, err
	}
	canvas := vgimg.NewWith(
		vgimg.UseWH(vg.Length(pc.WidthInches)*vg.Inch, vg.Length(pc.HeightInches)*vg.Inch),
		vgimg.UseDPI(pc.DPI),
	)
	p.Draw(draw.New(canvas))

	a, err := env.Outputs.Write(ctx, env.Config.Files.Boxplot, func(w io.Writer) error {
		_, err := vgimg.PngCanvas{Canvas: canvas}.WriteTo(w)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write the boxplot: %w", err)
	}
	return &BoxplotResult{Artifact: a, Men: len(m), Women: len(f), DPI: pc.DPI}, nil
}

// Render prints where the plot went.
func (r *BoxplotResult) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Boxplot of %d male and %d female ratings saved to %s (%d dpi).\n",
		r.Men, r.Women, r.Artifact.Path, r.DPI)
	return err
}
