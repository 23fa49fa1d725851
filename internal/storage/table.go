package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Table is a CSV file with a header row. Columns whose cells all parse as
// floats land in Data; the rest are kept verbatim in Text.
type Table struct {
	Columns []string
	Data    map[string][]float64
	Text    map[string][]string
	rows    int
}

func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: empty table")
	}

	header := records[0]
	t := &Table{
		Columns: make([]string, len(header)),
		Data:    make(map[string][]float64),
		Text:    make(map[string][]string),
		rows:    len(records) - 1,
	}
	for j, name := range header {
		t.Columns[j] = strings.TrimSpace(name)
	}

	for j, name := range t.Columns {
		text := make([]string, 0, t.rows)
		nums := make([]float64, 0, t.rows)
		numeric := true
		for _, rec := range records[1:] {
			cell := strings.TrimSpace(rec[j])
			text = append(text, cell)
			if !numeric {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				numeric = false
				continue
			}
			nums = append(nums, v)
		}
		if numeric {
			t.Data[name] = nums
		} else {
			t.Text[name] = text
		}
	}
	return t, nil
}

// Column returns the numeric column, or nil.
func (t *Table) Column(name string) []float64 {
	return t.Data[name]
}

func (t *Table) Len() int { return t.rows }
