package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/d3group/inventory-foundation-sdk/database"
	"github.com/d3group/inventory-foundation-sdk/errs"
	"github.com/d3group/inventory-foundation-sdk/logging"
)

// Defaults for inserter tuning.
const (
	// DefaultCommitEvery bounds transaction size for very large batches.
	DefaultCommitEvery = 1_000_000
	// DefaultIDColumn is the identifier column returned by upserts.
	DefaultIDColumn = "ID"
	// defaultFlushEvery is how many rows are queued per batched round trip.
	defaultFlushEvery = 1_000
	// defaultLogEvery is the progress-log row interval.
	defaultLogEvery = 100_000
)

// DB is the database surface the inserter needs. *database.Session
// satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Commit(ctx context.Context) error
}

// Inserter writes row batches into a target table.
type Inserter struct {
	db  DB
	log *slog.Logger

	commitEvery int
	idColumn    string
	logEvery    int
}

// InserterOption configures an Inserter.
type InserterOption func(*Inserter)

// WithLogger sets the logger for insert progress and warnings.
func WithLogger(logger *slog.Logger) InserterOption {
	return func(i *Inserter) { i.log = logger }
}

// WithCommitEvery sets the row-count commit interval.
func WithCommitEvery(n int) InserterOption {
	return func(i *Inserter) {
		if n > 0 {
			i.commitEvery = n
		}
	}
}

// WithIDColumn sets the identifier column returned by upserts.
func WithIDColumn(name string) InserterOption {
	return func(i *Inserter) {
		if name != "" {
			i.idColumn = name
		}
	}
}

// WithLogEvery sets the row interval for progress log records.
func WithLogEvery(n int) InserterOption {
	return func(i *Inserter) {
		if n > 0 {
			i.logEvery = n
		}
	}
}

// NewInserter returns an inserter writing through db.
func NewInserter(db DB, opts ...InserterOption) *Inserter {
	ins := &Inserter{
		db:          db,
		commitEvery: DefaultCommitEvery,
		idColumn:    DefaultIDColumn,
		logEvery:    defaultLogEvery,
	}
	for _, opt := range opts {
		opt(ins)
	}
	ins.log = logging.Or(ins.log)
	return ins
}

// Insert writes every record of the batch into table, silently skipping
// records that conflict with an existing primary or unique key. Nothing is
// returned for inserted rows. Work is committed every commitEvery rows and
// once after the full batch.
func (i *Inserter) Insert(ctx context.Context, batch RowBatch, table string) error {
	rows, insertQuery, log, err := i.prepare(batch, table, nil)
	if err != nil {
		return err
	}
	query := insertQuery + " ON CONFLICT DO NOTHING"

	log.Info("bulk insert started", "rows", len(rows))

	pending := &pgx.Batch{}
	var sinceCommit int
	for n, row := range rows {
		pending.Queue(query, row...)
		sinceCommit++

		if pending.Len() >= defaultFlushEvery || sinceCommit >= i.commitEvery || n == len(rows)-1 {
			if err := i.flush(ctx, pending); err != nil {
				return errs.Database("bulk insert", table, err)
			}
			pending = &pgx.Batch{}
		}
		if sinceCommit >= i.commitEvery {
			if err := i.db.Commit(ctx); err != nil {
				return errs.Database("bulk insert commit", table, err)
			}
			sinceCommit = 0
		}
		if (n+1)%i.logEvery == 0 {
			log.Debug("bulk insert progress", "rows_done", n+1)
		}
	}

	if err := i.db.Commit(ctx); err != nil {
		return errs.Database("bulk insert commit", table, err)
	}
	log.Info("bulk insert finished", "rows", len(rows))
	return nil
}

// InsertReturningIDs upserts every record of the batch into table and
// returns the database-assigned identifier of each one, in input order. A
// record conflicting on uniqueColumns triggers a no-op update that only
// exists to make the database emit the existing row's identifier, so
// exactly one id comes back per input record. Work is committed every
// commitEvery rows and once after the full batch.
func (i *Inserter) InsertReturningIDs(ctx context.Context, batch RowBatch, table string, uniqueColumns []string) ([]int64, error) {
	if len(uniqueColumns) == 0 {
		return nil, errs.InvalidArgumentf("unique columns must be provided when returning ids")
	}

	rows, insertQuery, log, err := i.prepare(batch, table, uniqueColumns)
	if err != nil {
		return nil, err
	}

	uniqueList, err := joinQuotedColumns(uniqueColumns)
	if err != nil {
		return nil, err
	}
	firstUnique, err := database.QuoteIdentifier(uniqueColumns[0])
	if err != nil {
		return nil, err
	}
	idCol, err := database.QuoteIdentifier(i.idColumn)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s RETURNING %s",
		insertQuery, uniqueList, firstUnique, firstUnique, idCol)

	log.Info("bulk upsert started", "rows", len(rows))

	ids := make([]int64, 0, len(rows))
	var sinceCommit int
	for n, row := range rows {
		var id int64
		if err := i.db.QueryRow(ctx, query, row...).Scan(&id); err != nil {
			return nil, errs.Database("bulk upsert", table, err)
		}
		ids = append(ids, id)

		sinceCommit++
		if sinceCommit >= i.commitEvery {
			if err := i.db.Commit(ctx); err != nil {
				return nil, errs.Database("bulk upsert commit", table, err)
			}
			sinceCommit = 0
		}
		if (n+1)%i.logEvery == 0 {
			log.Debug("bulk upsert progress", "rows_done", n+1)
		}
	}

	if err := i.db.Commit(ctx); err != nil {
		return nil, errs.Database("bulk upsert commit", table, err)
	}
	log.Info("bulk upsert finished", "rows", len(rows))
	return ids, nil
}

// prepare validates and coerces the batch, builds the shared INSERT prefix,
// and returns an operation-scoped logger. All failures here happen before
// any database work.
func (i *Inserter) prepare(batch RowBatch, table string, uniqueColumns []string) ([][]any, string, *slog.Logger, error) {
	if err := batch.validate(); err != nil {
		return nil, "", nil, err
	}

	log := i.log.With("op_id", uuid.New().String(), "table", table)
	if batch.hasNulls() {
		log.Warn("batch contains null values")
	}

	rows, err := batch.coerce()
	if err != nil {
		return nil, "", nil, err
	}

	quotedTable, err := database.QuoteIdentifier(table)
	if err != nil {
		return nil, "", nil, err
	}
	columnList, err := joinQuotedColumns(batch.Columns)
	if err != nil {
		return nil, "", nil, err
	}
	for _, col := range uniqueColumns {
		if _, err := database.QuoteIdentifier(col); err != nil {
			return nil, "", nil, err
		}
	}

	placeholders := make([]string, len(batch.Columns))
	for j := range placeholders {
		placeholders[j] = "$" + strconv.Itoa(j+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quotedTable, columnList, strings.Join(placeholders, ", "))

	return rows, query, log, nil
}

// flush sends the queued statements and drains their results.
func (i *Inserter) flush(ctx context.Context, pending *pgx.Batch) error {
	if pending.Len() == 0 {
		return nil
	}
	br := i.db.SendBatch(ctx, pending)
	for range pending.Len() {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

func joinQuotedColumns(cols []string) (string, error) {
	quoted, err := database.QuoteIdentifiers(cols)
	if err != nil {
		return "", err
	}
	return strings.Join(quoted, ", "), nil
}
