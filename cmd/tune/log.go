package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// tuneLog records one CSV row per evaluation and tracks the best candidate.
// Lower fitness is better.
type tuneLog struct {
	w     *csv.Writer
	total int
	start time.Time

	evals       int
	bestFitness float64
	bestParams  []float64
}

func newTuneLog(w io.Writer, params *ParamVector, total int) (*tuneLog, error) {
	l := &tuneLog{w: csv.NewWriter(w), total: total, start: time.Now(), bestFitness: 1e9}
	header := []string{"eval", "fitness", "last_mean"}
	for _, s := range params.Specs {
		header = append(header, s.Name)
	}
	if err := l.w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	l.w.Flush()
	return l, l.w.Error()
}

// record logs an evaluation of the clamped raw values and reports whether it
// is the best so far.
func (l *tuneLog) record(values []float64, fitness, lastMean float64) (bool, error) {
	l.evals++
	improved := fitness < l.bestFitness
	if improved {
		l.bestFitness = fitness
		l.bestParams = append([]float64(nil), values...)
	}

	row := make([]string, 0, 3+len(values))
	row = append(row, strconv.Itoa(l.evals), ftoa(fitness), ftoa(lastMean))
	for _, v := range values {
		row = append(row, ftoa(v))
	}
	if err := l.w.Write(row); err != nil {
		return improved, err
	}
	l.w.Flush()
	return improved, l.w.Error()
}

// eta estimates the time left from the mean evaluation time so far.
func (l *tuneLog) eta() time.Duration {
	if l.evals == 0 {
		return 0
	}
	per := l.elapsed() / time.Duration(l.evals)
	return (time.Duration(max(l.total-l.evals, 0)) * per).Round(time.Second)
}

func (l *tuneLog) elapsed() time.Duration {
	return time.Since(l.start).Round(time.Second)
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
