package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hola", 10, "hola"},
		{"exact", "hola", 4, "hola"},
		{"cut", "abcdefghij", 6, "abc..."},
		{"multibyte", "¿Quién hereda?", 8, "¿Quié..."},
		{"disabled", "abcdefghij", 0, "abcdefghij"},
		{"tiny", "abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestSQLiteErrorClassifiersFallBackToMessage(t *testing.T) {
	unique := fmt.Errorf("insert user: %w", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"))
	if !IsSQLiteUniqueError(unique) {
		t.Error("expected unique violation to be detected")
	}
	if IsSQLiteForeignKeyError(unique) {
		t.Error("unique violation misclassified as foreign key")
	}

	fk := errors.New("constraint failed: FOREIGN KEY constraint failed (787)")
	if !IsSQLiteForeignKeyError(fk) {
		t.Error("expected foreign key violation to be detected")
	}

	if !IsSQLiteConflictError(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("expected busy error to be detected")
	}
	if IsSQLiteUniqueError(nil) || IsSQLiteForeignKeyError(nil) || IsSQLiteConflictError(nil) {
		t.Error("nil must never classify as a SQLite error")
	}
}
