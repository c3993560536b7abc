// Package reconcile backfills dimension tables so that every entity in a
// dataset's scope has a row, inserting zero-valued placeholders for the
// entities a pipeline stage skipped.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/d3group/inventory-foundation-sdk/database"
	"github.com/d3group/inventory-foundation-sdk/errs"
	"github.com/d3group/inventory-foundation-sdk/logging"
)

// DefaultScopeTable holds the entity-to-dataset mapping that defines each
// dataset's scope.
const DefaultScopeTable = "dataset_matching"

// DB is the database surface the reconciler needs. *database.Session
// satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
}

// Params describes one reconciliation run.
type Params struct {
	// TargetTable is checked for missing entity rows.
	TargetTable string
	// DatasetColumn names the dataset id column, shared by the scope table
	// and the target table.
	DatasetColumn string
	// IDColumn names the entity id column, shared by the scope table and
	// the target table.
	IDColumn string
	// InsertArguments are the value columns set to zero in placeholder rows.
	InsertArguments []string
	// DatasetID selects the scope to reconcile.
	DatasetID any
	// FurtherPrimaryKeys and FurtherPrimaryKeyValues narrow the target rows
	// when its primary key extends beyond entity and dataset, for example a
	// period column. Both must be given together, pairwise.
	FurtherPrimaryKeys      []string
	FurtherPrimaryKeyValues []any
}

// Reconciler backfills missing entity rows in target tables.
type Reconciler struct {
	db         DB
	log        *slog.Logger
	scopeTable string
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger sets the logger for reconciliation progress and failures.
func WithLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.log = logger }
}

// WithScopeTable overrides the table defining dataset scopes.
func WithScopeTable(table string) ReconcilerOption {
	return func(r *Reconciler) {
		if table != "" {
			r.scopeTable = table
		}
	}
}

// NewReconciler returns a reconciler reading and writing through db.
func NewReconciler(db DB, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		db:         db,
		scopeTable: DefaultScopeTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.Or(r.log)
	return r
}

// Run ensures every entity in the dataset's scope has a row in the target
// table, inserting zero-valued placeholders for the missing ones. Placeholder
// inserts carry ON CONFLICT DO NOTHING on the full key, so a concurrent or
// repeated run never duplicates rows. Failures are logged and returned.
func (r *Reconciler) Run(ctx context.Context, p Params) error {
	log := r.log.With("table", p.TargetTable, "dataset_id", p.DatasetID)

	if err := r.run(ctx, p, log); err != nil {
		log.Error("scope reconciliation failed", "error", err)
		return errs.Database("reconcile", p.TargetTable, err)
	}
	return nil
}

func (r *Reconciler) run(ctx context.Context, p Params, log *slog.Logger) error {
	if err := p.validate(); err != nil {
		return err
	}

	scope, err := r.scopeIDs(ctx, p)
	if err != nil {
		return err
	}
	existing, err := r.existingIDs(ctx, p)
	if err != nil {
		return err
	}

	var missing []any
	for _, id := range scope {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		log.Info("no missing entity rows")
		return nil
	}

	log.Info("inserting placeholder rows", "missing", len(missing))
	if err := r.insertPlaceholders(ctx, p, missing); err != nil {
		return err
	}
	if err := r.db.Commit(ctx); err != nil {
		return err
	}
	log.Info("placeholder rows inserted", "missing", len(missing))
	return nil
}

func (p Params) validate() error {
	if p.TargetTable == "" || p.DatasetColumn == "" || p.IDColumn == "" {
		return errs.InvalidArgumentf("target table, dataset column, and id column are required")
	}
	if (len(p.FurtherPrimaryKeys) == 0) != (len(p.FurtherPrimaryKeyValues) == 0) {
		return errs.InvalidArgumentf("further primary keys and their values must be provided together")
	}
	if len(p.FurtherPrimaryKeys) != len(p.FurtherPrimaryKeyValues) {
		return errs.InvalidArgumentf("got %d further primary keys but %d values",
			len(p.FurtherPrimaryKeys), len(p.FurtherPrimaryKeyValues))
	}
	return nil
}

// scopeIDs returns every entity id mapped to the dataset in the scope table,
// in query order.
func (r *Reconciler) scopeIDs(ctx context.Context, p Params) ([]any, error) {
	scopeTable, err := database.QuoteIdentifier(r.scopeTable)
	if err != nil {
		return nil, err
	}
	idCol, err := database.QuoteIdentifier(p.IDColumn)
	if err != nil {
		return nil, err
	}
	dsCol, err := database.QuoteIdentifier(p.DatasetColumn)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", idCol, scopeTable, dsCol)
	rows, err := r.db.Query(ctx, query, p.DatasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []any
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// existingIDs returns the distinct entity ids already present in the target
// table for the dataset, narrowed by the further primary keys when given.
func (r *Reconciler) existingIDs(ctx context.Context, p Params) (map[any]struct{}, error) {
	targetTable, err := database.QuoteIdentifier(p.TargetTable)
	if err != nil {
		return nil, err
	}
	idCol, err := database.QuoteIdentifier(p.IDColumn)
	if err != nil {
		return nil, err
	}
	dsCol, err := database.QuoteIdentifier(p.DatasetColumn)
	if err != nil {
		return nil, err
	}

	conditions := []string{dsCol + " = $1"}
	args := []any{p.DatasetID}
	for i, key := range p.FurtherPrimaryKeys {
		quoted, err := database.QuoteIdentifier(key)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, quoted+" = $"+strconv.Itoa(len(args)+1))
		args = append(args, p.FurtherPrimaryKeyValues[i])
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s",
		idCol, targetTable, strings.Join(conditions, " AND "))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[any]struct{})
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

// insertPlaceholders writes one zero-valued row per missing entity. The
// conflict target is the full key tuple, so rows inserted by someone else
// between the read and the write are skipped.
func (r *Reconciler) insertPlaceholders(ctx context.Context, p Params, missing []any) error {
	query, err := buildPlaceholderQuery(p)
	if err != nil {
		return err
	}

	for _, id := range missing {
		args := append([]any{id, p.DatasetID}, p.FurtherPrimaryKeyValues...)
		if _, err := r.db.Exec(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func buildPlaceholderQuery(p Params) (string, error) {
	columns := append([]string{p.IDColumn, p.DatasetColumn}, p.InsertArguments...)
	columns = append(columns, p.FurtherPrimaryKeys...)
	quotedColumns, err := database.QuoteIdentifiers(columns)
	if err != nil {
		return "", err
	}

	// Entity id and dataset id are parameters, insert arguments are literal
	// zeros, further key values follow as parameters.
	values := []string{"$1", "$2"}
	for range p.InsertArguments {
		values = append(values, "0")
	}
	for i := range p.FurtherPrimaryKeys {
		values = append(values, "$"+strconv.Itoa(3+i))
	}

	keyColumns := append([]string{p.IDColumn, p.DatasetColumn}, p.FurtherPrimaryKeys...)
	quotedKeys, err := database.QuoteIdentifiers(keyColumns)
	if err != nil {
		return "", err
	}
	targetTable, err := database.QuoteIdentifier(p.TargetTable)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		targetTable, strings.Join(quotedColumns, ", "),
		strings.Join(values, ", "), strings.Join(quotedKeys, ", ")), nil
}
