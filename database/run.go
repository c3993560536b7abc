package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/d3group/inventory-foundation-sdk/errs"
)

// FetchMode selects how Run surfaces result rows.
type FetchMode int

const (
	// FetchNone discards any result rows.
	FetchNone FetchMode = iota
	// FetchOne returns at most the first result row.
	FetchOne
	// FetchAll returns every result row.
	FetchAll
)

// Run executes a single query. With FetchOne the result holds at most one
// row; with FetchAll it holds every row; with FetchNone it is nil. When
// commit is set, pending work is committed after execution.
func (s *Session) Run(ctx context.Context, query string, args []any, mode FetchMode, commit bool) ([][]any, error) {
	if mode != FetchNone && mode != FetchOne && mode != FetchAll {
		return nil, errs.InvalidArgumentf("unknown fetch mode %d", mode)
	}

	var result [][]any
	switch mode {
	case FetchNone:
		if _, err := s.Exec(ctx, query, args...); err != nil {
			return nil, errs.Database("run", "", err)
		}
	default:
		rows, err := s.Query(ctx, query, args...)
		if err != nil {
			return nil, errs.Database("run", "", err)
		}
		result, err = collectRows(rows, mode == FetchOne)
		if err != nil {
			return nil, errs.Database("run", "", err)
		}
	}

	if commit {
		if err := s.Commit(ctx); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// RunMany executes a query across many parameter tuples in one of two
// shapes: per-tuple execution collecting each execution's first result row
// (fetchRows true, batch false), or a single batched round trip with no
// per-row results (batch true, fetchRows false). Any other combination is
// an invalid argument.
func (s *Session) RunMany(ctx context.Context, query string, params [][]any, fetchRows, batch, commit bool) ([][]any, error) {
	if batch && fetchRows {
		return nil, errs.InvalidArgumentf("batch execution cannot collect per-row results")
	}
	if !batch && !fetchRows {
		return nil, errs.InvalidArgumentf("per-tuple execution requires per-row fetch")
	}

	var result [][]any
	if batch {
		b := &pgx.Batch{}
		for _, tuple := range params {
			b.Queue(query, tuple...)
		}
		br := s.SendBatch(ctx, b)
		for range params {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return nil, errs.Database("run many", "", err)
			}
		}
		if err := br.Close(); err != nil {
			return nil, errs.Database("run many", "", err)
		}
	} else {
		result = make([][]any, 0, len(params))
		for _, tuple := range params {
			rows, err := s.Query(ctx, query, tuple...)
			if err != nil {
				return nil, errs.Database("run many", "", err)
			}
			first, err := collectRows(rows, true)
			if err != nil {
				return nil, errs.Database("run many", "", err)
			}
			if len(first) > 0 {
				result = append(result, first[0])
			}
		}
	}

	if commit {
		if err := s.Commit(ctx); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// collectRows drains rows into value slices, stopping after the first row
// when firstOnly is set.
func collectRows(rows pgx.Rows, firstOnly bool) ([][]any, error) {
	defer rows.Close()

	var result [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		result = append(result, values)
		if firstOnly {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
