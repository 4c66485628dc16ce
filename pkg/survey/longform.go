package survey

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// LongHeader is the column layout of the long-format choice files.
var LongHeader = []string{"Teilnehmer", "Item", "System", "Emotion", "Kongruenz", "choice"}

// LongRecord is one best or worst decision of one participant on one question.
type LongRecord struct {
	Participant int
	Item        string
	System      System
	Emotion     Emotion
	Congruence  Congruence
	// Choice is 1 for the best pick and 0 for the worst pick.
	Choice int
}

// IsBest reports whether the record is a best pick.
func (r LongRecord) IsBest() bool { return r.Choice == 1 }

// ToLong reshapes the wide survey rows into long-format decisions: for each
// participant and each question column, the best row followed by the worst row.
func ToLong(ds *Dataset) []LongRecord {
	recs := make([]LongRecord, 0, 2*len(ds.Responses)*len(ds.QuestionIDs))
	for _, resp := range ds.Responses {
		for _, qid := range ds.QuestionIDs {
			q, _ := LookupQuestion(qid)
			c := resp.Choices[qid]
			recs = append(recs,
				LongRecord{Participant: resp.Participant, Item: qid, System: c.Best, Emotion: q.Emotion, Congruence: q.Congruence, Choice: 1},
				LongRecord{Participant: resp.Participant, Item: qid, System: c.Worst, Emotion: q.Emotion, Congruence: q.Congruence, Choice: 0},
			)
		}
	}
	return recs
}

// FilterCongruence keeps the records of one congruence condition.
func FilterCongruence(recs []LongRecord, c Congruence) []LongRecord {
	var out []LongRecord
	for _, r := range recs {
		if r.Congruence == c {
			out = append(out, r)
		}
	}
	return out
}

// WriteLongCSV writes recs with LongHeader.
func WriteLongCSV(w io.Writer, recs []LongRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LongHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			strconv.Itoa(r.Participant),
			r.Item,
			r.System.Label(),
			string(r.Emotion),
			string(r.Congruence),
			strconv.Itoa(r.Choice),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadLongCSV parses a file written by WriteLongCSV.
func ReadLongCSV(r io.Reader) ([]LongRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, h := range LongHeader {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("missing column %q", h)
		}
	}

	var recs []LongRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseLongRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func parseLongRow(row []string, idx map[string]int) (LongRecord, error) {
	pid, err := strconv.Atoi(row[idx["Teilnehmer"]])
	if err != nil {
		return LongRecord{}, fmt.Errorf("participant: %w", err)
	}
	sys, err := ParseSystemLabel(row[idx["System"]])
	if err != nil {
		return LongRecord{}, err
	}
	choice, err := strconv.Atoi(row[idx["choice"]])
	if err != nil || (choice != 0 && choice != 1) {
		return LongRecord{}, fmt.Errorf("choice %q is not 0 or 1", row[idx["choice"]])
	}
	return LongRecord{
		Participant: pid,
		Item:        row[idx["Item"]],
		System:      sys,
		Emotion:     Emotion(row[idx["Emotion"]]),
		Congruence:  Congruence(row[idx["Kongruenz"]]),
		Choice:      choice,
	}, nil
}
