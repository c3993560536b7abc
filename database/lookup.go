package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/d3group/inventory-foundation-sdk/errs"
)

// FetchIDsBulk resolves the identifier columns of up to len(rows) target
// rows by joining an inline VALUES table of candidate rows against the
// target on lookup-column equality. Rows are processed in fixed-size chunks
// to bound query size. The result is ordered by match, not by input
// position: candidates with no match are simply absent, so callers must not
// assume positional correspondence. Every identifier is coerced to int64.
func (s *Session) FetchIDsBulk(ctx context.Context, table string, idColumns, lookupColumns []string, rows [][]any) ([][]int64, error) {
	if len(idColumns) == 0 {
		return nil, errs.InvalidArgumentf("id columns must not be empty")
	}
	if len(lookupColumns) == 0 {
		return nil, errs.InvalidArgumentf("lookup columns must not be empty")
	}
	for i, row := range rows {
		if len(row) != len(lookupColumns) {
			return nil, errs.InvalidArgumentf("row %d has %d values, want %d lookup columns",
				i, len(row), len(lookupColumns))
		}
	}

	ids := make([][]int64, 0, len(rows))
	for start := 0; start < len(rows); start += s.chunkSize {
		end := min(start+s.chunkSize, len(rows))

		query, args, err := buildIDLookupQuery(table, idColumns, lookupColumns, rows[start:end])
		if err != nil {
			return nil, err
		}

		chunkRows, err := s.Query(ctx, query, args...)
		if err != nil {
			return nil, errs.Database("fetch ids", table, err)
		}
		values, err := collectRows(chunkRows, false)
		if err != nil {
			return nil, errs.Database("fetch ids", table, err)
		}

		for _, row := range values {
			rowIDs := make([]int64, len(row))
			for i, v := range row {
				id, err := coerceID(v)
				if err != nil {
					return nil, errs.Database("fetch ids", table,
						fmt.Errorf("column %q: %w", idColumns[i], err))
				}
				rowIDs[i] = id
			}
			ids = append(ids, rowIDs)
		}
	}
	return ids, nil
}

// FetchIDs is the single-id-column form of FetchIDsBulk, returning a flat
// identifier slice.
func (s *Session) FetchIDs(ctx context.Context, table, idColumn string, lookupColumns []string, rows [][]any) ([]int64, error) {
	tuples, err := s.FetchIDsBulk(ctx, table, []string{idColumn}, lookupColumns, rows)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(tuples))
	for i, tuple := range tuples {
		ids[i] = tuple[0]
	}
	return ids, nil
}

// buildIDLookupQuery renders one chunk's lookup:
//
//	SELECT t."ID" FROM "sku" AS t
//	JOIN (VALUES ($1, $2), ($3, $4)) AS v("name", "datasetID")
//	ON t."name" = v."name" AND t."datasetID" = v."datasetID"
func buildIDLookupQuery(table string, idColumns, lookupColumns []string, chunk [][]any) (string, []any, error) {
	quotedTable, err := QuoteIdentifier(table)
	if err != nil {
		return "", nil, err
	}
	quotedIDs, err := QuoteIdentifiers(idColumns)
	if err != nil {
		return "", nil, err
	}
	quotedLookups, err := QuoteIdentifiers(lookupColumns)
	if err != nil {
		return "", nil, err
	}

	selects := make([]string, len(quotedIDs))
	for i, col := range quotedIDs {
		selects[i] = "t." + col
	}

	valueRows := make([]string, len(chunk))
	args := make([]any, 0, len(chunk)*len(lookupColumns))
	arg := 1
	for i, row := range chunk {
		placeholders := make([]string, len(row))
		for j, v := range row {
			placeholders[j] = "$" + strconv.Itoa(arg)
			args = append(args, v)
			arg++
		}
		valueRows[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	conditions := make([]string, len(quotedLookups))
	for i, col := range quotedLookups {
		conditions[i] = fmt.Sprintf("t.%s = v.%s", col, col)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s AS t JOIN (VALUES %s) AS v(%s) ON %s",
		strings.Join(selects, ", "),
		quotedTable,
		strings.Join(valueRows, ", "),
		strings.Join(quotedLookups, ", "),
		strings.Join(conditions, " AND "),
	)
	return query, args, nil
}

// coerceID converts a scanned identifier value to int64.
func coerceID(v any) (int64, error) {
	switch id := v.(type) {
	case int64:
		return id, nil
	case int32:
		return int64(id), nil
	case int16:
		return int64(id), nil
	case int:
		return int64(id), nil
	case uint32:
		return int64(id), nil
	case float64:
		return int64(id), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse id %q as integer", id)
		}
		return parsed, nil
	case pgtype.Numeric:
		i8, err := id.Int64Value()
		if err != nil || !i8.Valid {
			return 0, fmt.Errorf("cannot convert numeric id to integer")
		}
		return i8.Int64, nil
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}
