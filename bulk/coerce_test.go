package bulk

import (
	"testing"
	"time"
)

func TestCoerceValue(t *testing.T) {
	noon := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   any
		target  ColumnType
		want    any
		wantErr bool
	}{
		{"nil passes through", nil, TypeInt, nil, false},

		{"int to int", 7, TypeInt, int64(7), false},
		{"float truncates to int", 3.9, TypeInt, int64(3), false},
		{"negative float truncates toward zero", -3.9, TypeInt, int64(-3), false},
		{"string to int", "42", TypeInt, int64(42), false},
		{"padded string to int", " 42 ", TypeInt, int64(42), false},
		{"bool to int", true, TypeInt, int64(1), false},
		{"bad string to int", "4.2", TypeInt, nil, true},

		{"int to float", 2, TypeFloat, 2.0, false},
		{"string to float", "1.5", TypeFloat, 1.5, false},
		{"bad string to float", "one", TypeFloat, nil, true},

		{"string to text", "apple", TypeText, "apple", false},
		{"int to text", 12, TypeText, "12", false},
		{"time to text", noon, TypeText, "2025-03-14T12:00:00Z", false},

		{"bool to bool", true, TypeBool, true, false},
		{"yes to bool", "Yes", TypeBool, true, false},
		{"f to bool", "f", TypeBool, false, false},
		{"zero to bool", 0, TypeBool, false, false},
		{"bad string to bool", "maybe", TypeBool, nil, true},

		{"time to timestamp", noon, TypeTimestamp, noon, false},
		{"rfc3339 to timestamp", "2025-03-14T12:00:00Z", TypeTimestamp, noon, false},
		{"date only to timestamp", "2025-03-14", TypeTimestamp,
			time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), false},
		{"bad string to timestamp", "yesterday", TypeTimestamp, nil, true},
		{"int to timestamp", 1700000000, TypeTimestamp, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(tt.input, tt.target)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("coerceValue(%v, %s) = %v, want error", tt.input, tt.target, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("coerceValue(%v, %s) error: %v", tt.input, tt.target, err)
			}
			if got != tt.want {
				t.Errorf("coerceValue(%v, %s) = %v, want %v", tt.input, tt.target, got, tt.want)
			}
		})
	}
}
