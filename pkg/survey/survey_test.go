package survey

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCSV renders a survey export with all 24 questions. Each row gives the
// value for Q1; the remaining questions get "1,2".
func buildCSV(rows ...[]string) string {
	var b strings.Builder
	b.WriteString("ID")
	for i := 1; i <= 24; i++ {
		fmt.Fprintf(&b, ",Q%d", i)
	}
	b.WriteString(",Geschlecht,Altersgruppe,Englischkenntnisse,Realismus\n")
	for n, r := range rows {
		fmt.Fprintf(&b, "%d,\"%s\"", n, r[0])
		for i := 2; i <= 24; i++ {
			b.WriteString(",\"1,2\"")
		}
		fmt.Fprintf(&b, ",%s,%s,%s,%s\n", r[1], r[2], r[3], r[4])
	}
	return b.String()
}

func TestQuestionTable(t *testing.T) {
	require.Len(t, Questions, 24)

	counts := make(map[string]int)
	for _, q := range Questions {
		counts[string(q.Emotion)+"/"+string(q.Congruence)]++
	}
	assert.Len(t, counts, 8)
	for key, n := range counts {
		assert.Equal(t, 3, n, key)
	}

	q, ok := LookupQuestion("Q10")
	require.True(t, ok)
	assert.Equal(t, Sad, q.Emotion)
	assert.Equal(t, Incongruent, q.Congruence)

	assert.Equal(t, []string{"Q19", "Q20", "Q21"}, QuestionsFor(Surprised, Congruent))
	assert.Len(t, QuestionsFor(Angry), 6)
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		cell    string
		want    Choice
		wantErr error
	}{
		{cell: "2,4", want: Choice{Best: EmoSpeech, Worst: EmotiVoice}},
		{cell: " 1 , 3 ", want: Choice{Best: CosyVoice, Worst: EmoKnob}},
		{cell: "2,2", wantErr: ErrSameChoice},
		{cell: "0,1", wantErr: ErrInvalidChoice},
		{cell: "5,1", wantErr: ErrInvalidChoice},
		{cell: "x", wantErr: ErrInvalidChoice},
		{cell: "", wantErr: ErrInvalidChoice},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			got, err := ParseChoice(tt.cell)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Best.Valid())
			assert.True(t, got.Worst.Valid())
		})
	}
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	data := buildCSV(
		[]string{"2,4", "1", "2", "3", "4"},
		[]string{"3,3", "2", "1", "1", "5"},
		[]string{"1,3", "2", "1", "1", "n/a"},
	)

	ds, err := Load(context.Background(), strings.NewReader(data), LoadOptions{})
	require.NoError(t, err)

	require.Len(t, ds.Responses, 2)
	require.Len(t, ds.Rejected, 1)
	assert.Equal(t, 1, ds.Rejected[0].Row)

	var ce *ChoiceError
	require.True(t, errors.As(ds.Rejected[0].Err, &ce))
	assert.Equal(t, "Q1", ce.Question)
	assert.ErrorIs(t, ds.Rejected[0].Err, ErrSameChoice)

	first := ds.Responses[0]
	assert.Equal(t, 0, first.Participant)
	assert.Equal(t, 1, first.Gender)
	assert.Equal(t, 3, first.Proficiency)
	assert.Equal(t, 4.0, first.Realism)

	// Participant ids stay tied to the export row.
	assert.Equal(t, 2, ds.Responses[1].Participant)
	assert.True(t, math.IsNaN(ds.Responses[1].Realism))

	// The rejected row keeps its demographics and rating.
	require.Len(t, ds.Ratings, 3)
	rejected := ds.Ratings[1]
	assert.Nil(t, rejected.Choices)
	assert.Equal(t, 2, rejected.Gender)
	assert.Equal(t, 5.0, rejected.Realism)
	assert.Equal(t, []float64{4, 5}, RealismValues(ds))
}

func TestLoadStrict(t *testing.T) {
	data := buildCSV([]string{"4,4", "1", "1", "1", "3"})
	_, err := Load(context.Background(), strings.NewReader(data), LoadOptions{Strict: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSameChoice)
}

func TestLoadUnknownQuestionColumn(t *testing.T) {
	_, err := Load(context.Background(), strings.NewReader("Q1,Q99\n\"1,2\",\"1,2\"\n"), LoadOptions{})
	assert.ErrorContains(t, err, "Q99")
}

func TestToLongSingleParticipant(t *testing.T) {
	ds, err := Load(context.Background(), strings.NewReader(buildCSV([]string{"2,4", "1", "1", "1", "3"})), LoadOptions{})
	require.NoError(t, err)

	recs := ToLong(ds)
	assert.Len(t, recs, 48)

	var q1 []LongRecord
	for _, r := range recs {
		if r.Item == "Q1" {
			q1 = append(q1, r)
		}
	}
	require.Len(t, q1, 2)
	assert.Equal(t, EmoSpeech, q1[0].System)
	assert.Equal(t, 1, q1[0].Choice)
	assert.Equal(t, EmotiVoice, q1[1].System)
	assert.Equal(t, 0, q1[1].Choice)
	assert.Equal(t, Happy, q1[0].Emotion)
	assert.Equal(t, Congruent, q1[0].Congruence)

	assert.Len(t, FilterCongruence(recs, Incongruent), 24)
}

func TestWriteLongCSVDeterministic(t *testing.T) {
	data := buildCSV(
		[]string{"2,4", "1", "1", "1", "3"},
		[]string{"3,1", "2", "2", "2", "2"},
	)

	render := func() []byte {
		ds, err := Load(context.Background(), strings.NewReader(data), LoadOptions{})
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, WriteLongCSV(&buf, ToLong(ds)))
		return buf.Bytes()
	}

	first, second := render(), render()
	assert.Equal(t, first, second)
	assert.True(t, bytes.HasPrefix(first, []byte("Teilnehmer,Item,System,Emotion,Kongruenz,choice\n0,Q1,EmoSpeech,Happy,Congruent,1\n")))

	back, err := ReadLongCSV(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Len(t, back, 96)
	assert.Equal(t, EmotiVoice, back[1].System)
}

func TestRealismBy(t *testing.T) {
	data := buildCSV(
		[]string{"1,2", "2", "1", "1", "4"},
		[]string{"1,2", "1", "1", "1", "2"},
		[]string{"1,2", "1", "1", "1", ""},
		[]string{"1,2", "9", "1", "1", "5"},
	)
	ds, err := Load(context.Background(), strings.NewReader(data), LoadOptions{})
	require.NoError(t, err)

	groups := RealismBy(ds, Gender)
	require.Len(t, groups, 2)
	assert.Equal(t, "Male", groups[0].Label)
	assert.Equal(t, []float64{2}, groups[0].Values)
	assert.Equal(t, "Female", groups[1].Label)

	assert.Equal(t, []float64{4, 2, 5}, RealismValues(ds))
}
