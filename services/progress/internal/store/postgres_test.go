package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/example/watch-progress/internal/watch"
)

func TestPostgresUpsertMerge(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO watch_progress").
		WithArgs("u1", "c1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT merged_intervals, last_known_position").
		WithArgs("u1", "c1").
		WillReturnRows(pgxmock.NewRows([]string{"merged_intervals", "last_known_position", "content_duration", "updated_at"}).
			AddRow([]byte(`[{"start":0,"end":10}]`), 10.0, 100.0, time.Now()))
	mock.ExpectExec("UPDATE watch_progress").
		WithArgs("u1", "c1", `[{"start":0,"end":20}]`, 20.0, 20.0, 20.0, 100.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	s := NewPostgresProgressStore(mock)
	res, err := s.UpsertMerge(context.Background(), "u1", "c1", []watch.Interval{iv(8, 20)}, 20, 100)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(res.Record.MergedIntervals, []watch.Interval{iv(0, 20)}) {
		t.Fatalf("expected [0,20], got %v", res.Record.MergedIntervals)
	}
	if res.FirstCompletion {
		t.Fatalf("expected no completion at 20%%")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestPostgresUpsertRollsBackOnUpdateError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO watch_progress").
		WithArgs("u1", "c1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT merged_intervals, last_known_position").
		WithArgs("u1", "c1").
		WillReturnRows(pgxmock.NewRows([]string{"merged_intervals", "last_known_position", "content_duration", "updated_at"}).
			AddRow([]byte(`[]`), 0.0, 0.0, time.Now()))
	mock.ExpectExec("UPDATE watch_progress").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	s := NewPostgresProgressStore(mock)
	if _, err := s.UpsertMerge(context.Background(), "u1", "c1", []watch.Interval{iv(0, 5)}, 5, 0); err == nil {
		t.Fatal("expected error from failed update")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestPostgresGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT merged_intervals, total_unique_watched_seconds").
		WithArgs("u1", "c1").
		WillReturnRows(pgxmock.NewRows([]string{
			"merged_intervals", "total_unique_watched_seconds", "last_known_position",
			"progress_percentage", "content_duration", "updated_at",
		}).AddRow([]byte(`[{"start":0,"end":15},{"start":20,"end":25}]`), 20.0, 25.0, 20.0, 100.0, updated))

	s := NewPostgresProgressStore(mock)
	rec, err := s.Get(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rec.MergedIntervals) != 2 || rec.ProgressPercentage != 20 || !rec.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet mock expectations: %v", err)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT merged_intervals, total_unique_watched_seconds").
		WithArgs("u1", "missing").
		WillReturnError(pgx.ErrNoRows)

	s := NewPostgresProgressStore(mock)
	if _, err := s.Get(context.Background(), "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresBeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))
	s := NewPostgresProgressStore(mock)
	if _, err := s.UpsertMerge(context.Background(), "u1", "c1", nil, 0, 0); err == nil {
		t.Fatal("expected begin error")
	}
}

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@db:5432/app":   "pgx5://u:p@db:5432/app",
		"postgresql://u:p@db:5432/app": "pgx5://u:p@db:5432/app",
		"pgx5://db/app":                "pgx5://db/app",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
}
