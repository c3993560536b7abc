package bulk

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/d3group/inventory-foundation-sdk/errs"
)

// spyDB records every call the inserter makes without touching a database.
type spyDB struct {
	queued  []queuedStatement
	queries []queuedStatement
	commits int

	nextID int64
}

type queuedStatement struct {
	sql  string
	args []any
}

func (s *spyDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.queries = append(s.queries, queuedStatement{sql, args})
	return pgconn.CommandTag{}, nil
}

func (s *spyDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.queries = append(s.queries, queuedStatement{sql, args})
	s.nextID++
	return spyRow{id: s.nextID}
}

func (s *spyDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	for _, q := range b.QueuedQueries {
		s.queued = append(s.queued, queuedStatement{q.SQL, q.Arguments})
	}
	return spyBatchResults{n: b.Len()}
}

func (s *spyDB) Commit(context.Context) error {
	s.commits++
	return nil
}

func (s *spyDB) callCount() int { return len(s.queued) + len(s.queries) + s.commits }

type spyRow struct{ id int64 }

func (r spyRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.id
	return nil
}

type spyBatchResults struct{ n int }

func (spyBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }
func (spyBatchResults) Query() (pgx.Rows, error)         { return nil, pgx.ErrNoRows }
func (spyBatchResults) QueryRow() pgx.Row                { return spyRow{} }
func (spyBatchResults) Close() error                     { return nil }

func sampleBatch() RowBatch {
	return RowBatch{
		Columns: []string{"name", "datasetID"},
		Types:   []ColumnType{TypeText, TypeInt},
		Rows:    [][]any{{"apple", 7}, {"pear", 7}, {"plum", 7}},
	}
}

func TestInsertQueuesEveryRecord(t *testing.T) {
	db := &spyDB{}
	ins := NewInserter(db)

	if err := ins.Insert(context.Background(), sampleBatch(), "sku"); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	if len(db.queued) != 3 {
		t.Fatalf("queued %d statements, want 3", len(db.queued))
	}
	want := `INSERT INTO "sku" ("name", "datasetID") VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for i, q := range db.queued {
		if q.sql != want {
			t.Errorf("statement %d =\n%s\nwant\n%s", i, q.sql, want)
		}
	}
	if db.queued[0].args[0] != "apple" || db.queued[0].args[1] != int64(7) {
		t.Errorf("statement 0 args = %v", db.queued[0].args)
	}
	if db.commits != 1 {
		t.Errorf("commits = %d, want 1", db.commits)
	}
}

func TestInsertInvalidBatchTouchesNothing(t *testing.T) {
	db := &spyDB{}
	ins := NewInserter(db)

	bad := sampleBatch()
	bad.Types = bad.Types[:1]

	err := ins.Insert(context.Background(), bad, "sku")
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("Insert() = %v, want ErrInvalidArgument", err)
	}
	if db.callCount() != 0 {
		t.Errorf("invalid batch reached the database: %d calls", db.callCount())
	}
}

func TestInsertCoercionFailureTouchesNothing(t *testing.T) {
	db := &spyDB{}
	ins := NewInserter(db)

	bad := sampleBatch()
	bad.Rows[1][1] = "lots"

	err := ins.Insert(context.Background(), bad, "sku")
	var cerr *errs.CoercionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Insert() = %v, want *CoercionError", err)
	}
	if db.callCount() != 0 {
		t.Errorf("uncastable batch reached the database: %d calls", db.callCount())
	}
}

func TestInsertUnsafeTableRejected(t *testing.T) {
	db := &spyDB{}
	ins := NewInserter(db)

	err := ins.Insert(context.Background(), sampleBatch(), `sku"; DROP TABLE sku; --`)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("Insert() = %v, want ErrInvalidArgument", err)
	}
	if db.callCount() != 0 {
		t.Errorf("unsafe table reached the database: %d calls", db.callCount())
	}
}

func TestInsertCommitInterval(t *testing.T) {
	db := &spyDB{}
	ins := NewInserter(db, WithCommitEvery(2))

	batch := RowBatch{
		Columns: []string{"name"},
		Types:   []ColumnType{TypeText},
		Rows:    [][]any{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}},
	}
	if err := ins.Insert(context.Background(), batch, "sku"); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	if len(db.queued) != 5 {
		t.Errorf("queued %d statements, want 5", len(db.queued))
	}
	// One commit per full interval plus the final one.
	if db.commits != 3 {
		t.Errorf("commits = %d, want 3", db.commits)
	}
}

func TestInsertReturningIDs(t *testing.T) {
	db := &spyDB{}
	ins := NewInserter(db)

	ids, err := ins.InsertReturningIDs(context.Background(), sampleBatch(), "sku",
		[]string{"name", "datasetID"})
	if err != nil {
		t.Fatalf("InsertReturningIDs() error: %v", err)
	}

	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("ids = %v, want [1 2 3]", ids)
	}
	want := `INSERT INTO "sku" ("name", "datasetID") VALUES ($1, $2)` +
		` ON CONFLICT ("name", "datasetID") DO UPDATE SET "name" = EXCLUDED."name" RETURNING "ID"`
	if db.queries[0].sql != want {
		t.Errorf("query =\n%s\nwant\n%s", db.queries[0].sql, want)
	}
	if db.commits != 1 {
		t.Errorf("commits = %d, want 1", db.commits)
	}
}

func TestInsertReturningIDsCustomIDColumn(t *testing.T) {
	db := &spyDB{}
	ins := NewInserter(db, WithIDColumn("skuID"))

	_, err := ins.InsertReturningIDs(context.Background(), sampleBatch(), "sku", []string{"name"})
	if err != nil {
		t.Fatalf("InsertReturningIDs() error: %v", err)
	}
	if !strings.HasSuffix(db.queries[0].sql, `RETURNING "skuID"`) {
		t.Errorf("query does not return skuID:\n%s", db.queries[0].sql)
	}
}

func TestInserterOptions(t *testing.T) {
	ins := NewInserter(&spyDB{}, WithCommitEvery(500), WithIDColumn("skuID"), WithLogEvery(10))
	if ins.commitEvery != 500 || ins.idColumn != "skuID" || ins.logEvery != 10 {
		t.Errorf("options not applied: %+v", ins)
	}

	// Non-positive values keep the defaults.
	ins = NewInserter(&spyDB{}, WithCommitEvery(0), WithIDColumn(""), WithLogEvery(-1))
	if ins.commitEvery != DefaultCommitEvery || ins.idColumn != DefaultIDColumn || ins.logEvery != defaultLogEvery {
		t.Errorf("defaults not kept: %+v", ins)
	}
}

func TestInsertReturningIDsRequiresUniqueColumns(t *testing.T) {
	db := &spyDB{}
	ins := NewInserter(db)

	_, err := ins.InsertReturningIDs(context.Background(), sampleBatch(), "sku", nil)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("InsertReturningIDs() = %v, want ErrInvalidArgument", err)
	}
	if db.callCount() != 0 {
		t.Errorf("call without unique columns reached the database: %d calls", db.callCount())
	}
}
