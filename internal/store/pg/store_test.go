package pg

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// openTestStore migrates a scratch database named by GITCHAT_TEST_POSTGRES_DSN.
// The tests are skipped when it is unset.
func openTestStore(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv("GITCHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GITCHAT_TEST_POSTGRES_DSN not set")
	}

	m, err := migrate.New("file://../../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	if err := m.Drop(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	m.Close()

	m, err = migrate.New("file://../../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("migrate up: %v", err)
	}

	s, err := NewPGStores(store.StoreConfig{PostgresDSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPGStore_RepositoryUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &store.RepositoryRecord{ClientID: "c1", Name: "A", URL: "u", Host: "github.com", Owner: "o", Repo: "r", Branch: "main", Token: "t"}
	first, err := s.UpsertRepository(ctx, rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	again := *rec
	again.Branch = "develop"
	second, err := s.UpsertRepository(ctx, &again)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID || second.Branch != "develop" {
		t.Errorf("second = %+v, first id %s", second, first.ID)
	}

	other := &store.RepositoryRecord{ClientID: "c1", Name: "B", Host: "github.com", Owner: "o", Repo: "b", Branch: "main"}
	if _, err := s.UpsertRepository(ctx, other); err != nil {
		t.Fatalf("insert B: %v", err)
	}
	clash := *rec
	clash.ID = first.ID
	clash.Name = "B"
	if _, err := s.UpsertRepository(ctx, &clash); !errors.Is(err, store.ErrNameTaken) {
		t.Errorf("rename clash: err = %v, want ErrNameTaken", err)
	}

	list, err := s.ListRepositories(ctx, "c1")
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %+v, err %v", list, err)
	}
	if list[0].Name != "A" || list[0].Token != "t" {
		t.Errorf("first listed = %+v", list[0])
	}

	if err := s.DeleteRepository(ctx, "c2", first.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cross-client delete: %v", err)
	}
	if err := s.DeleteRepository(ctx, "c1", first.ID); err != nil {
		t.Errorf("delete: %v", err)
	}
	if _, err := s.GetRepository(ctx, "c1", first.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get deleted: %v", err)
	}
}

func TestPGStore_MessagesAndMirrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertConnection(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"a", "b", "c"} {
		msg := store.NewChatMessage("c1", store.SenderUser, text)
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err := s.ListMessages(ctx, "c1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Text != "b" || msgs[1].Text != "c" {
		t.Errorf("messages = %+v", msgs)
	}

	issue := &store.IssueMirror{ClientID: "c1", RepositoryID: "r1", Number: 3, Title: "x", Labels: []string{"bug"}}
	if err := s.UpsertIssue(ctx, issue); err != nil {
		t.Fatal(err)
	}
	issue.Title = "y"
	if err := s.UpsertIssue(ctx, issue); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := s.RemoveConnection(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
}
