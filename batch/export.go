package batch

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

type resultRecord struct {
	Source               string   `json:"source"`
	Target               string   `json:"target"`
	Key                  string   `json:"key,omitempty"`
	Status               Outcome  `json:"status"`
	Error                string   `json:"error,omitempty"`
	RunID                string   `json:"run_id,omitempty"`
	MatchPercentage      *float64 `json:"match_percentage,omitempty"`
	RowsA                int64    `json:"rows_a"`
	RowsB                int64    `json:"rows_b"`
	Matched              int64    `json:"matched"`
	OnlyA                int64    `json:"only_a"`
	OnlyB                int64    `json:"only_b"`
	DiffValues           int64    `json:"diff_values"`
	ExecutionTimeSeconds float64  `json:"execution_time_seconds"`
}

func makeRecord(r Result) resultRecord {
	rec := resultRecord{
		Source: r.Pair.RelationA,
		Target: r.Pair.RelationB,
		Key:    r.Pair.Key,
		Status: r.Outcome,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		return rec
	}
	c := r.Comparison
	pct := c.MatchPercentage
	rec.RunID = c.RunID
	rec.MatchPercentage = &pct
	rec.RowsA = c.RowCountA
	rec.RowsB = c.RowCountB
	rec.Matched = c.MatchedCount
	rec.OnlyA = c.OnlyACount
	rec.OnlyB = c.OnlyBCount
	rec.DiffValues = c.DiffValueCount
	rec.ExecutionTimeSeconds = c.ExecutionTimeSeconds
	return rec
}

type summaryRecord struct {
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	DurationSeconds float64        `json:"duration_seconds"`
	Total           int            `json:"total"`
	Identical       int            `json:"identical"`
	Different       int            `json:"different"`
	Errors          int            `json:"errors"`
	Skipped         int            `json:"skipped"`
	Results         []resultRecord `json:"results"`
}

// WriteJSON writes the summary and every result as an indented JSON document.
func WriteJSON(w io.Writer, s Summary) error {
	rec := summaryRecord{
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationSeconds: s.Duration().Seconds(),
		Total:           s.Total,
		Identical:       s.Identical,
		Different:       s.Different,
		Errors:          s.Errors,
		Skipped:         s.Skipped,
		Results:         make([]resultRecord, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		rec.Results = append(rec.Results, makeRecord(r))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(rec), "error writing summary")
}

var csvHeader = []string{
	"source", "target", "key", "status", "error", "run_id", "match_percentage",
	"rows_a", "rows_b", "matched", "only_a", "only_b", "diff_values", "execution_time_seconds",
}

// WriteCSV writes one line per result.
func WriteCSV(w io.Writer, s Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "error writing summary")
	}
	for _, r := range s.Results {
		rec := makeRecord(r)
		pct := ""
		if rec.MatchPercentage != nil {
			pct = strconv.FormatFloat(*rec.MatchPercentage, 'f', 2, 64)
		}
		if err := cw.Write([]string{
			rec.Source,
			rec.Target,
			rec.Key,
			string(rec.Status),
			rec.Error,
			rec.RunID,
			pct,
			strconv.FormatInt(rec.RowsA, 10),
			strconv.FormatInt(rec.RowsB, 10),
			strconv.FormatInt(rec.Matched, 10),
			strconv.FormatInt(rec.OnlyA, 10),
			strconv.FormatInt(rec.OnlyB, 10),
			strconv.FormatInt(rec.DiffValues, 10),
			strconv.FormatFloat(rec.ExecutionTimeSeconds, 'f', 3, 64),
		}); err != nil {
			return errors.Wrap(err, "error writing summary")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "error writing summary")
}

// Export writes the summary in the named format, csv or json.
func Export(w io.Writer, s Summary, format string) error {
	switch format {
	case "csv":
		return WriteCSV(w, s)
	case "json":
		return WriteJSON(w, s)
	}
	return errors.Newf("unknown summary format %q, expected csv or json", format)
}
