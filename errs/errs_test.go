package errs

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestInvalidArgumentf(t *testing.T) {
	err := InvalidArgumentf("expected %d columns, got %d", 3, 2)

	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("errors.Is(err, ErrInvalidArgument) = false, want true")
	}
	if !strings.Contains(err.Error(), "expected 3 columns, got 2") {
		t.Errorf("error message %q missing detail", err.Error())
	}
}

func TestCoercionError(t *testing.T) {
	inner := errors.New("bad syntax")
	err := &CoercionError{Column: "skuID", Row: 4, Value: "abc", Target: "int", Err: inner}

	msg := err.Error()
	for _, want := range []string{"skuID", "row 4", "abc", "int"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, inner) {
		t.Errorf("errors.Is did not unwrap to inner error")
	}

	var coErr *CoercionError
	wrapped := Database("insert", "sales", err)
	if !errors.As(wrapped, &coErr) {
		t.Errorf("Database() should pass coercion errors through unchanged")
	}
}

func TestDatabaseWrapping(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		if Database("op", "t", nil) != nil {
			t.Error("Database(nil) should be nil")
		}
	})

	t.Run("wraps driver errors once", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := Database("fetch universe", "dataset_matching", inner)

		var dbErr *DatabaseError
		if !errors.As(err, &dbErr) {
			t.Fatal("expected *DatabaseError")
		}
		if dbErr.Table != "dataset_matching" {
			t.Errorf("Table = %q, want dataset_matching", dbErr.Table)
		}

		// Re-wrapping must not stack another layer.
		again := Database("outer", "other", err)
		if again != err {
			t.Error("already-wrapped error should propagate unchanged")
		}
	})

	t.Run("invalid argument passes through", func(t *testing.T) {
		err := Database("op", "t", InvalidArgumentf("nope"))
		if !errors.Is(err, ErrInvalidArgument) {
			t.Error("InvalidArgument should survive Database()")
		}
		var dbErr *DatabaseError
		if errors.As(err, &dbErr) {
			t.Error("InvalidArgument must not be rewrapped as DatabaseError")
		}
	})
}

func TestPgClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, IsUniqueViolation, true},
		{"wrapped unique violation", Database("insert", "t", &pgconn.PgError{Code: "23505"}), IsUniqueViolation, true},
		{"fk violation is not unique", &pgconn.PgError{Code: "23503"}, IsUniqueViolation, false},
		{"fk violation", &pgconn.PgError{Code: "23503"}, IsForeignKeyViolation, true},
		{"not null", &pgconn.PgError{Code: "23502"}, IsNotNullViolation, true},
		{"plain error", errors.New("boom"), IsUniqueViolation, false},
		{"nil", nil, IsUniqueViolation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
