package survey

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// RealismColumn holds the 1..5 Likert realism rating.
const RealismColumn = "Realismus"

var (
	// ErrInvalidChoice is returned for cells that do not hold two system ids.
	ErrInvalidChoice = errors.New("invalid choice cell")
	// ErrSameChoice is returned when best and worst name the same system.
	ErrSameChoice = errors.New("best and worst choice are the same system")
)

// ChoiceError describes a rejected question cell.
type ChoiceError struct {
	Question string
	Cell     string
	Err      error
}

func (e *ChoiceError) Error() string {
	return fmt.Sprintf("question %s: cell %q: %v", e.Question, e.Cell, e.Err)
}

func (e *ChoiceError) Unwrap() error { return e.Err }

// RowError records a survey row that was rejected during loading.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

// Response is one participant's survey row.
type Response struct {
	Participant int
	Choices     map[string]Choice
	Gender      int
	AgeGroup    int
	Proficiency int
	// Realism is NaN when the cell is missing or not numeric.
	Realism float64
}

// Dataset is the normalised survey export shared by every analysis.
type Dataset struct {
	// QuestionIDs holds the question columns in header order.
	QuestionIDs []string
	// Responses holds the rows whose choice cells all parsed.
	Responses []Response
	// Ratings holds every row, rejected ones included. Rows rejected for a
	// choice cell carry no Choices but keep their demographics and realism.
	Ratings  []Response
	Rejected []RowError
}

// LoadOptions controls survey loading.
type LoadOptions struct {
	// Strict fails the load on the first malformed row instead of rejecting it.
	Strict bool
	Logger *zap.Logger
}

var questionHeader = regexp.MustCompile(`^Q\d+$`)

// ParseChoice parses a "best,worst" cell such as "2, 4".
func ParseChoice(cell string) (Choice, error) {
	parts := strings.SplitN(cell, ",", 2)
	if len(parts) != 2 {
		return Choice{}, ErrInvalidChoice
	}
	best, err := parseSystem(parts[0])
	if err != nil {
		return Choice{}, err
	}
	worst, err := parseSystem(parts[1])
	if err != nil {
		return Choice{}, err
	}
	if best == worst {
		return Choice{}, ErrSameChoice
	}
	return Choice{Best: best, Worst: worst}, nil
}

func parseSystem(s string) (System, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidChoice, strings.TrimSpace(s))
	}
	sys := System(n)
	if !sys.Valid() {
		return 0, fmt.Errorf("%w: system id %d out of range", ErrInvalidChoice, n)
	}
	return sys, nil
}

// LoadFile opens path and loads the survey export from it.
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open survey: %w", err)
	}
	defer f.Close()

	ds, err := Load(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Load reads a survey export in CSV form.
func Load(ctx context.Context, r io.Reader, opts LoadOptions) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	ds := &Dataset{}
	var qcols []questionColumn
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[h] = i
		if !questionHeader.MatchString(h) {
			continue
		}
		if _, ok := LookupQuestion(h); !ok {
			return nil, fmt.Errorf("unknown question column %q", h)
		}
		qcols = append(qcols, questionColumn{index: i, id: h})
		ds.QuestionIDs = append(ds.QuestionIDs, h)
	}
	if len(ds.QuestionIDs) == 0 {
		logger.Warn("Survey export has no question columns")
	}

	row := -1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++

		resp, err := parseRow(row, rec, qcols, cols)
		if err != nil {
			if opts.Strict {
				return nil, RowError{Row: row, Err: err}
			}
			logger.Warn("Rejecting survey row for choice analyses", zap.Int("row", row), zap.Error(err))
			ds.Rejected = append(ds.Rejected, RowError{Row: row, Err: err})
			resp.Choices = nil
			ds.Ratings = append(ds.Ratings, resp)
			continue
		}
		ds.Responses = append(ds.Responses, resp)
		ds.Ratings = append(ds.Ratings, resp)
	}

	logger.Info("Survey loaded",
		zap.Int("responses", len(ds.Responses)),
		zap.Int("ratings", len(ds.Ratings)),
		zap.Int("rejected", len(ds.Rejected)),
		zap.Int("questions", len(ds.QuestionIDs)))
	return ds, nil
}

type questionColumn struct {
	index int
	id    string
}

// parseRow returns the row's demographics and realism even when a choice cell
// is rejected.
func parseRow(row int, rec []string, qcols []questionColumn, cols map[string]int) (Response, error) {
	resp := Response{
		Participant: row,
		Choices:     make(map[string]Choice, len(qcols)),
		Gender:      intField(rec, cols, Gender.Column),
		AgeGroup:    intField(rec, cols, AgeGroup.Column),
		Proficiency: intField(rec, cols, Proficiency.Column),
		Realism:     math.NaN(),
	}
	if i, ok := cols[RealismColumn]; ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(field(rec, i)), 64); err == nil {
			resp.Realism = v
		}
	}
	for _, qc := range qcols {
		cell := field(rec, qc.index)
		c, err := ParseChoice(cell)
		if err != nil {
			return resp, &ChoiceError{Question: qc.id, Cell: cell, Err: err}
		}
		resp.Choices[qc.id] = c
	}
	return resp, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// intField returns the integer code in column name, or 0 when it is missing.
// Exports that went through a spreadsheet may carry codes as "2.0".
func intField(rec []string, cols map[string]int, name string) int {
	i, ok := cols[name]
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(field(rec, i)), 64)
	if err != nil || v != math.Trunc(v) {
		return 0
	}
	return int(v)
}
