// Package summary records per-file token counts and writes them as CSV.
package summary

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Header is the first CSV row.
var Header = []string{"file_name", "n_tokens"}

// Record is one processed file.
type Record struct {
	FileName string
	NTokens  int
}

// Recorder accumulates records in the order they are added.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	total   int
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add appends a record.
func (r *Recorder) Add(fileName string, nTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{FileName: fileName, NTokens: nTokens})
	r.total += nTokens
}

// Records returns a copy of the records in insertion order.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Total returns the sum of all token counts.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Encode writes the header and every record to w.
func (r *Recorder) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range r.Records() {
		if err := cw.Write([]string{rec.FileName, strconv.Itoa(rec.NTokens)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes the summary to path, creating parent directories. The
// file is replaced atomically.
func (r *Recorder) WriteCSV(path string) error {
	var buf bytes.Buffer
	if err := r.Encode(&buf); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}

// ReadCSV parses a summary written by WriteCSV.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse summary %s: %w", path, err)
	}
	if len(rows) == 0 || len(rows[0]) != 2 || rows[0][0] != Header[0] || rows[0][1] != Header[1] {
		return nil, fmt.Errorf("parse summary %s: missing %v header", path, Header)
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		n, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("parse summary %s: row %d: %w", path, i+2, err)
		}
		records = append(records, Record{FileName: row[0], NTokens: n})
	}
	return records, nil
}
