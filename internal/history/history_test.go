package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/sdbot/core/database"
	"github.com/m3rciful/sdbot/core/logger"
	"github.com/m3rciful/sdbot/internal/menu"
	"github.com/m3rciful/sdbot/internal/params"
	"github.com/m3rciful/sdbot/internal/sdapi"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sqlx.Open(database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db, database.DriverSQLite, Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testParams(userID int64, prompt string) params.Set {
	p := params.New(userID, params.DefaultDefaults())
	p.Prompt = prompt
	return p.View()
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := database.Migrate(context.Background(), db, database.DriverSQLite, Migrations()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestStoreInsertAndRecent(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewStore(db, fixedClock{t: now})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first := FromParams("a", testParams(7, "castle"))
	first.Status = StatusOK
	if err := store.Insert(ctx, &first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !first.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v", first.CreatedAt)
	}

	second := FromParams("b", testParams(7, "forest"))
	second.Status = StatusFail
	second.Error = "boom"
	second.CreatedAt = now.Add(time.Minute)
	if err := store.Insert(ctx, &second); err != nil {
		t.Fatalf("insert: %v", err)
	}

	other := FromParams("c", testParams(8, "sea"))
	other.Status = StatusOK
	if err := store.Insert(ctx, &other); err != nil {
		t.Fatalf("insert: %v", err)
	}

	recent, err := store.Recent(ctx, 7, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "b" || recent[1].ID != "a" {
		t.Fatalf("recent = %+v", recent)
	}
	if recent[0].Prompt != "forest" || recent[0].Error != "boom" || recent[0].Steps != 20 {
		t.Fatalf("record = %+v", recent[0])
	}
}

func TestStoreStats(t *testing.T) {
	db := openTestDB(t)
	store, err := NewStore(db, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	empty, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty != (Stats{}) {
		t.Fatalf("empty stats = %+v", empty)
	}

	rows := []struct {
		id     string
		user   int64
		status string
		ms     int64
	}{
		{"1", 1, StatusOK, 100},
		{"2", 1, StatusFail, 300},
		{"3", 2, StatusOK, 200},
	}
	for _, r := range rows {
		rec := FromParams(r.id, testParams(r.user, "p"))
		rec.Status = r.status
		rec.DurationMS = r.ms
		if err := store.Insert(ctx, &rec); err != nil {
			t.Fatalf("insert %s: %v", r.id, err)
		}
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Total: 3, Succeeded: 2, Failed: 1, Users: 2, AvgMS: 200}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

type memWriter struct {
	recs []Record
	err  error
}

func (m *memWriter) Insert(_ context.Context, rec *Record) error {
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, *rec)
	return nil
}

func TestRecorderStoresOutcome(t *testing.T) {
	var genIDs []string
	gen := menu.GeneratorFunc(func(ctx context.Context, p params.Set) sdapi.Outcome {
		genIDs = append(genIDs, logger.GenIDFrom(ctx))
		if p.Prompt == "bad" {
			return sdapi.Failure("API returned status 500: nope")
		}
		return sdapi.Success([]byte("png"))
	})
	w := &memWriter{}
	rec := NewRecorder(gen, w)

	if out := rec.Generate(context.Background(), testParams(5, "good")); !out.OK() {
		t.Fatalf("outcome = %+v", out)
	}
	if out := rec.Generate(context.Background(), testParams(5, "bad")); out.OK() {
		t.Fatal("failure reported as success")
	}

	if len(w.recs) != 2 {
		t.Fatalf("records = %d", len(w.recs))
	}
	ok, fail := w.recs[0], w.recs[1]
	if ok.Status != StatusOK || ok.ImageBytes != 3 || ok.ID == "" {
		t.Fatalf("ok record = %+v", ok)
	}
	if fail.Status != StatusFail || fail.Error == "" || fail.ID == ok.ID {
		t.Fatalf("fail record = %+v", fail)
	}
	if len(genIDs) != 2 || genIDs[0] != ok.ID || genIDs[1] != fail.ID {
		t.Fatalf("gen ids in context = %v", genIDs)
	}
}

func TestRecorderIgnoresStoreErrors(t *testing.T) {
	gen := menu.GeneratorFunc(func(ctx context.Context, p params.Set) sdapi.Outcome {
		return sdapi.Success([]byte("png"))
	})
	rec := NewRecorder(gen, &memWriter{err: errors.New("disk full")})
	if out := rec.Generate(context.Background(), testParams(1, "x")); !out.OK() {
		t.Fatalf("outcome = %+v", out)
	}
}
