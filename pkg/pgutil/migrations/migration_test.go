package migrations

import (
	"context"
	"testing"

	"github.com/chainsafe/token-bridge/pkg/config"
	"github.com/chainsafe/token-bridge/pkg/pgutil"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

type cursorDao struct {
	bun.BaseModel `bun:"table:test_cursor"`
	ID            int64  `bun:",pk,autoincrement"`
	Route         string `bun:",notnull,type:varchar(100)"`
	Block         int64  `bun:",nullzero"`
}

func TestConnectDB_InvalidHost(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:     "invalid-host-that-does-not-exist",
		Port:     5432,
		User:     "test",
		Password: "test",
		Database: "test",
		SSLMode:  "disable",
	}

	db, err := pgutil.ConnectDB(context.Background(), cfg)
	if err == nil {
		_ = db.Close()
		t.Error("ConnectDB() should fail with invalid host")
	}
}

func TestCreateAndDropSchema(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &cursorDao{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	pgutil.AssertTableExists(t, db, "test_cursor")

	// idempotent
	if err := CreateSchema(ctx, db, &cursorDao{}); err != nil {
		t.Errorf("CreateSchema() second call failed: %v", err)
	}

	if _, err := db.NewInsert().Model(&cursorDao{Route: "a-to-b", Block: 7}).Exec(ctx); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	pgutil.AssertRowCount(t, db, "test_cursor", 1)

	if err := TruncateTables(ctx, db, &cursorDao{}); err != nil {
		t.Fatalf("TruncateTables() failed: %v", err)
	}
	pgutil.AssertRowCount(t, db, "test_cursor", 0)

	if err := DropTables(ctx, db, &cursorDao{}); err != nil {
		t.Fatalf("DropTables() failed: %v", err)
	}
	pgutil.AssertTableNotExists(t, db, "test_cursor")
}

func TestModelIndexes(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &cursorDao{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	if err := CreateModelIndexes(ctx, db, &cursorDao{}, "route", "block"); err != nil {
		t.Fatalf("CreateModelIndexes() failed: %v", err)
	}
	pgutil.AssertIndexExists(t, db, "idx_test_cursor_route")
	pgutil.AssertIndexExists(t, db, "idx_test_cursor_block")

	if err := DropModelIndexes(ctx, db, &cursorDao{}, "route", "block"); err != nil {
		t.Fatalf("DropModelIndexes() failed: %v", err)
	}

	var exists bool
	query := `SELECT EXISTS (SELECT FROM pg_indexes WHERE schemaname = 'public' AND indexname = ?)`
	if err := db.NewRaw(query, "idx_test_cursor_route").Scan(ctx, &exists); err != nil {
		t.Fatalf("failed to check index: %v", err)
	}
	if exists {
		t.Error("idx_test_cursor_route should be dropped")
	}
}

func TestRunMigrations(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	set := migrate.NewMigrations()
	set.Add(migrate.Migration{
		Name: "20240101000000",
		Up: func(ctx context.Context, db *bun.DB) error {
			return CreateSchema(ctx, db, &cursorDao{})
		},
		Down: func(ctx context.Context, db *bun.DB) error {
			return DropTables(ctx, db, &cursorDao{})
		},
	})
	migrator := migrate.NewMigrator(db, set)

	for _, cmd := range []string{"init", "up", "status"} {
		if err := RunMigrations(ctx, migrator, cmd); err != nil {
			t.Fatalf("RunMigrations(%s) failed: %v", cmd, err)
		}
	}
	pgutil.AssertTableExists(t, db, "test_cursor")

	if err := RunMigrations(ctx, migrator, "down"); err != nil {
		t.Fatalf("RunMigrations(down) failed: %v", err)
	}
	pgutil.AssertTableNotExists(t, db, "test_cursor")

	if err := RunMigrations(ctx, migrator, "sideways"); err == nil {
		t.Error("expected unknown command to fail")
	}
}
