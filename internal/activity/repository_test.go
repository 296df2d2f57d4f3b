package activity

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "activity-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE slate_activity (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			collection TEXT NOT NULL,
			item TEXT,
			user_id TEXT,
			ip TEXT,
			user_agent TEXT,
			origin TEXT,
			comment TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return db
}

func TestCreateAndList(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	entry := &Entry{
		Action:     ActionLogin,
		Collection: CollectionUsers,
		UserID:     "user-1",
		IP:         "10.0.0.1",
		UserAgent:  "curl/8.0",
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if entry.ID == "" {
		t.Error("Create should generate an ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Create should stamp CreatedAt")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("Total = %d, entries = %d, want 1/1", result.Total, len(result.Entries))
	}
	got := result.Entries[0]
	if got.Action != ActionLogin || got.UserID != "user-1" || got.IP != "10.0.0.1" {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestList_Filters(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	seed := []Entry{
		{Action: ActionLogin, Collection: CollectionUsers, UserID: "user-1"},
		{Action: ActionLogout, Collection: CollectionUsers, UserID: "user-1"},
		{Action: ActionUpdate, Collection: "articles", Item: "42", UserID: "user-2"},
	}
	for i := range seed {
		seed[i].CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding entry %d: %v", i, err)
		}
	}

	byAction, err := repo.List(ctx, Filter{Action: ActionLogin})
	if err != nil {
		t.Fatalf("List by action failed: %v", err)
	}
	if byAction.Total != 1 {
		t.Errorf("login entries = %d, want 1", byAction.Total)
	}

	byUser, err := repo.List(ctx, Filter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List by user failed: %v", err)
	}
	if byUser.Total != 2 {
		t.Errorf("user-1 entries = %d, want 2", byUser.Total)
	}

	byCollection, err := repo.List(ctx, Filter{Collection: "articles"})
	if err != nil {
		t.Fatalf("List by collection failed: %v", err)
	}
	if byCollection.Total != 1 || byCollection.Entries[0].Item != "42" {
		t.Errorf("unexpected articles result: %+v", byCollection)
	}
}

func TestList_OrderAndPagination(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		entry := &Entry{
			Action:     ActionUpdate,
			Collection: "articles",
			Item:       string(rune('a' + i)),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("seeding entry %d: %v", i, err)
		}
	}

	page, err := repo.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 5 || len(page.Entries) != 2 {
		t.Fatalf("Total = %d, page = %d, want 5/2", page.Total, len(page.Entries))
	}
	// Most recent first
	if page.Entries[0].Item != "e" {
		t.Errorf("first entry item = %q, want e", page.Entries[0].Item)
	}

	next, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List with offset failed: %v", err)
	}
	if len(next.Entries) != 1 || next.Entries[0].Item != "a" {
		t.Errorf("unexpected last page: %+v", next.Entries)
	}
}

func TestList_Empty(t *testing.T) {
	repo := NewRepository(testDB(t))

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 0 || result.Entries == nil || len(result.Entries) != 0 {
		t.Errorf("empty table should yield a non-nil empty slice, got %+v", result)
	}
}
