package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "organizations_stripe_account_id_key"}, kind: KindUniqueViolation},
		{name: "pgx foreign key", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), kind: KindForeignKeyViolation},
		{name: "pgx check", err: &pgconn.PgError{Code: "23514"}, kind: KindOther},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, kind: KindUniqueViolation},
		{name: "gorm duplicated", err: gorm.ErrDuplicatedKey, kind: KindUniqueViolation},
		{name: "gorm foreign key", err: gorm.ErrForeignKeyViolated, kind: KindForeignKeyViolation},
		{name: "not found", err: gorm.ErrRecordNotFound, kind: KindNotFound},
		{name: "sqlite unique", err: errors.New("UNIQUE constraint failed: users.id"), kind: KindUniqueViolation},
		{name: "sqlite foreign key", err: errors.New("FOREIGN KEY constraint failed"), kind: KindForeignKeyViolation},
		{name: "other", err: errors.New("connection refused"), kind: KindOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := Classify(tc.err)
			var storeErr *StoreError
			if !errors.As(classified, &storeErr) {
				t.Fatalf("expected StoreError, got %T", classified)
			}
			if storeErr.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, storeErr.Kind)
			}
			if !errors.Is(classified, tc.err) {
				t.Fatal("expected classified error to wrap the original")
			}
		})
	}
}

func TestClassifyKeepsConstraintName(t *testing.T) {
	err := Classify(&pgconn.PgError{Code: "23505", ConstraintName: "widgets_slug_key"})
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Constraint != "widgets_slug_key" {
		t.Fatalf("expected constraint name, got %+v", err)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	first := Classify(gorm.ErrDuplicatedKey)
	if Classify(first) != first {
		t.Fatal("expected classified error to pass through")
	}
	if Classify(nil) != nil {
		t.Fatal("expected nil for nil")
	}
}
