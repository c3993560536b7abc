// Package bulk inserts tabular row batches into PostgreSQL tables, either
// fire-and-forget with conflict skipping or as an upsert returning the
// database-assigned identifier of every input row.
package bulk

import (
	"github.com/d3group/inventory-foundation-sdk/errs"
)

// ColumnType declares the target type a batch column is coerced to before
// insertion.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeFloat
	TypeText
	TypeBool
	TypeTimestamp
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeText:
		return "text"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// RowBatch is an ordered sequence of records with a fixed, ordered set of
// typed fields. Columns and Types run parallel to each record's values.
type RowBatch struct {
	Columns []string
	Types   []ColumnType
	Rows    [][]any
}

// Len returns the number of records in the batch.
func (b RowBatch) Len() int { return len(b.Rows) }

// fieldCount is the per-record field width the column and type specs must
// match. An empty batch falls back to the declared column count.
func (b RowBatch) fieldCount() int {
	if len(b.Rows) > 0 {
		return len(b.Rows[0])
	}
	return len(b.Columns)
}

// validate checks the column/type specs against the batch shape. It runs
// before any database work so malformed input never causes a partial write.
func (b RowBatch) validate() error {
	width := b.fieldCount()
	if len(b.Columns) != width {
		return errs.InvalidArgumentf("column name count %d does not match record field count %d",
			len(b.Columns), width)
	}
	if len(b.Types) != width {
		return errs.InvalidArgumentf("type count %d does not match record field count %d",
			len(b.Types), width)
	}
	for i, row := range b.Rows {
		if len(row) != width {
			return errs.InvalidArgumentf("record %d has %d fields, want %d", i, len(row), width)
		}
	}
	return nil
}

// hasNulls reports whether any record carries a nil value. Nulls are
// permitted but flagged with a warning.
func (b RowBatch) hasNulls() bool {
	for _, row := range b.Rows {
		for _, v := range row {
			if v == nil {
				return true
			}
		}
	}
	return false
}

// coerce converts every record's values to their declared column types,
// returning the typed rows. The first value that cannot be cast stops the
// conversion with a *CoercionError naming the offending field.
func (b RowBatch) coerce() ([][]any, error) {
	typed := make([][]any, len(b.Rows))
	for i, row := range b.Rows {
		typedRow := make([]any, len(row))
		for j, v := range row {
			cv, err := coerceValue(v, b.Types[j])
			if err != nil {
				return nil, &errs.CoercionError{
					Column: b.Columns[j],
					Row:    i,
					Value:  v,
					Target: b.Types[j].String(),
					Err:    err,
				}
			}
			typedRow[j] = cv
		}
		typed[i] = typedRow
	}
	return typed, nil
}

// WithIDs returns a copy of the batch with one extra integer column holding
// the database-assigned identifiers, in input order. The id slice must be
// exactly one per record.
func (b RowBatch) WithIDs(idColumn string, ids []int64) (RowBatch, error) {
	if len(ids) != len(b.Rows) {
		return RowBatch{}, errs.InvalidArgumentf("got %d ids for %d records", len(ids), len(b.Rows))
	}

	out := RowBatch{
		Columns: append(append([]string{}, b.Columns...), idColumn),
		Types:   append(append([]ColumnType{}, b.Types...), TypeInt),
		Rows:    make([][]any, len(b.Rows)),
	}
	for i, row := range b.Rows {
		out.Rows[i] = append(append([]any{}, row...), ids[i])
	}
	return out, nil
}
