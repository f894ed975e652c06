package history

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoadReturnsPersistedIDs(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT post_id FROM crowsnest\.processed_posts`).
		WithArgs("founders").
		WillReturnRows(sqlmock.NewRows([]string{"post_id"}).AddRow("p1").AddRow("p2"))

	store := NewSQLStore(db, testLogger())
	ids := store.Load(context.Background(), "founders")

	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if _, ok := ids["p1"]; !ok {
		t.Fatal("expected p1 in history")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoadFallsBackToCacheWhenDatabaseFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	// the mark persists the cache even though the insert fails
	mock.ExpectExec(`INSERT INTO crowsnest\.processed_posts`).
		WillReturnError(fmt.Errorf("connection refused"))
	mock.ExpectQuery(`SELECT post_id FROM crowsnest\.processed_posts`).
		WillReturnError(fmt.Errorf("connection refused"))

	store := NewSQLStore(db, testLogger())
	store.Mark(context.Background(), "founders", []string{"p1", "p2"})

	ids := store.Load(context.Background(), "founders")
	if len(ids) != 2 {
		t.Fatalf("expected cached ids to survive db failure, got %d", len(ids))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkInsertsWithConflictGuard(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO crowsnest\.processed_posts \(segment, post_id\) VALUES \(\$1, \$2\), \(\$1, \$3\) ON CONFLICT DO NOTHING`).
		WithArgs("founders", "p1", "p2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	store := NewSQLStore(db, testLogger())
	store.Mark(context.Background(), "founders", []string{"p1", "p2"})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkChunksLargeBatches(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	ids := make([]string, 1200)
	for i := range ids {
		ids[i] = fmt.Sprintf("post-%d", i)
	}

	// 1200 ids at a 500 cap is three statements
	for range 3 {
		mock.ExpectExec(`INSERT INTO crowsnest\.processed_posts`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	store := NewSQLStore(db, testLogger())
	store.Mark(context.Background(), "founders", ids)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkWithoutDatabaseKeepsCache(t *testing.T) {
	store := NewSQLStore(nil, testLogger())
	store.Mark(context.Background(), "founders", []string{"p1"})

	ids := store.Load(context.Background(), "founders")
	if _, ok := ids["p1"]; !ok {
		t.Fatal("expected id in memory-only history")
	}
}

func TestPurgeClearsDatabaseAndCache(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO crowsnest\.processed_posts`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM crowsnest\.processed_posts WHERE segment = \$1`).
		WithArgs("founders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT post_id FROM crowsnest\.processed_posts`).
		WillReturnRows(sqlmock.NewRows([]string{"post_id"}))

	store := NewSQLStore(db, testLogger())
	store.Mark(context.Background(), "founders", []string{"p1"})
	if err := store.Purge(context.Background(), "founders"); err != nil {
		t.Fatalf("Purge returned error: %v", err)
	}

	if ids := store.Load(context.Background(), "founders"); len(ids) != 0 {
		t.Fatalf("expected empty history after purge, got %d ids", len(ids))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
