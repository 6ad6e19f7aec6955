// Package dataset loads corpora of labeled points for cmd/annctl, the
// out-of-scope driver spec §1 names as present-but-unspecified. It reads
// from CSV, JSON, or a SQLite table, the way the teacher repo's
// pkg/core/store_init.go opens its own backing SQLite file — but only as
// an input source: indexes built from the result hold no reference back
// to the file they were loaded from.
package dataset

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/go-ann/neighbors/vector"
)

// Record is a single loaded point paired with the id it was read (or
// assigned) with.
type Record struct {
	ID         string
	Components []float64
}

// ToVector builds a vector.Vector from the record.
func (r Record) ToVector() (vector.Vector, error) {
	return vector.New(r.ID, r.Components)
}

// LoadCSV reads one point per row: an optional leading id column
// followed by float columns. If hasID is false, every row is assigned a
// generated id (mirrors the teacher's auto-id convention in
// pkg/core/document.go).
func LoadCSV(path string, hasID bool) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var out []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: read csv: %w", err)
		}
		rec, err := parseRow(row, hasID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string, hasID bool) (Record, error) {
	id := ""
	values := row
	if hasID {
		if len(row) == 0 {
			return Record{}, fmt.Errorf("dataset: empty csv row")
		}
		id = strings.TrimSpace(row[0])
		values = row[1:]
	}
	components := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return Record{}, fmt.Errorf("dataset: invalid component %q: %w", v, err)
		}
		components[i] = f
	}
	if id == "" {
		id = uuid.NewString()
	}
	return Record{ID: id, Components: components}, nil
}

// jsonRecord mirrors the on-disk shape: {"id": "...", "components": [...]}.
type jsonRecord struct {
	ID         string    `json:"id"`
	Components []float64 `json:"components"`
}

// LoadJSON reads a JSON array of {"id","components"} objects. A record
// with an empty or missing id is assigned a generated one.
func LoadJSON(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read json: %w", err)
	}
	var raw []jsonRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("dataset: parse json: %w", err)
	}
	out := make([]Record, len(raw))
	for i, r := range raw {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		out[i] = Record{ID: id, Components: r.Components}
	}
	return out, nil
}

// LoadSQLite opens the SQLite file at path read-only and reads every row
// of table as (id TEXT, components BLOB), where components is a
// comma-separated list of floats. This is a read-only corpus source, not
// index persistence: no index state is ever written back.
func LoadSQLite(path, table string) ([]Record, error) {
	dsn := fmt.Sprintf("%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("dataset: open sqlite: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf("SELECT id, components FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("dataset: query sqlite: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("dataset: scan row: %w", err)
		}
		if id == "" {
			id = uuid.NewString()
		}
		parts := strings.Split(string(raw), ",")
		components := make([]float64, len(parts))
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: invalid component in row %q: %w", id, err)
			}
			components[i] = f
		}
		out = append(out, Record{ID: id, Components: components})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dataset: iterate rows: %w", err)
	}
	return out, nil
}

// ToVectors converts a slice of Records into vector.Vector values,
// failing on the first dimension/parameter violation.
func ToVectors(records []Record) ([]vector.Vector, error) {
	out := make([]vector.Vector, len(records))
	for i, r := range records {
		v, err := r.ToVector()
		if err != nil {
			return nil, fmt.Errorf("dataset: record %d (%s): %w", i, r.ID, err)
		}
		out[i] = v
	}
	return out, nil
}
