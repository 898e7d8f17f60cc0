package store

import (
	"bytes"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"newsroom/internal/core"
)

// Column names of the email table, in write order.
const (
	ColSubject   = "Subject"
	ColFrom      = "From"
	ColDate      = "Date"
	ColBody      = "Body"
	ColCategory  = "Category"
	ColMessageID = "Message-ID"
)

// Columns is the header row written by Save.
var Columns = []string{ColSubject, ColFrom, ColDate, ColBody, ColCategory, ColMessageID}

// Table is the CSV file holding every classified email, keyed by Message-ID.
type Table struct {
	path string
}

// NewTable creates a table backed by path. The file need not exist yet.
func NewTable(path string) *Table {
	return &Table{path: path}
}

// Path returns the backing file path.
func (t *Table) Path() string {
	return t.path
}

// Load reads every record. A missing file yields no records and no error.
// Columns are matched by header name, so older tables with a different
// column order still load.
func (t *Table) Load() ([]core.EmailRecord, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open email table: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := ReadRecords(f, ColMessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.path, err)
	}
	return records, nil
}

// Save rewrites the whole table atomically with every field quoted.
func (t *Table) Save(records []core.EmailRecord) error {
	var buf bytes.Buffer
	writeQuotedRow(&buf, Columns)
	for _, r := range records {
		writeQuotedRow(&buf, []string{r.Subject, r.From, r.Date, r.Body, r.Category, r.MessageID})
	}
	if err := WriteFileAtomic(t.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to save email table: %w", err)
	}
	return nil
}

// Hash returns the md5 of the table file, or "" when it does not exist.
func (t *Table) Hash() (string, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return generateContentHash(data), nil
}

// ReadRecords parses an email table from r. Every column in required must
// be present in the header or core.ErrMissingColumns is returned.
func ReadRecords(r io.Reader, required ...string) ([]core.EmailRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrMissingColumns, strings.Join(missing, ", "))
	}

	field := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []core.EmailRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, core.EmailRecord{
			Subject:   field(row, ColSubject),
			From:      field(row, ColFrom),
			Date:      field(row, ColDate),
			Body:      field(row, ColBody),
			Category:  field(row, ColCategory),
			MessageID: field(row, ColMessageID),
		})
	}
	return records, nil
}

// Dedupe drops records whose MessageID was already seen, keeping the first.
func Dedupe(records []core.EmailRecord) []core.EmailRecord {
	seen := make(map[string]bool, len(records))
	out := make([]core.EmailRecord, 0, len(records))
	for _, r := range records {
		if seen[r.MessageID] {
			continue
		}
		seen[r.MessageID] = true
		out = append(out, r)
	}
	return out
}

// SortByDate orders records oldest first. The sort is stable and records
// with unparsable dates go last in their original order.
func SortByDate(records []core.EmailRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, okI := records[i].ParsedDate()
		tj, okJ := records[j].ParsedDate()
		switch {
		case okI && okJ:
			return ti.Before(tj)
		case okI:
			return true
		default:
			return false
		}
	})
}

// writeQuotedRow writes one CSV row with every field quoted.
// encoding/csv only quotes fields that need it.
func writeQuotedRow(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}

// generateContentHash returns the hex md5 of content.
func generateContentHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}
