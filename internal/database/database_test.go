package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crashround/internal/game"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var postgresAvailable bool

func mustStartPostgresContainer() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "database"
		dbPwd  = "password"
		dbUser = "user"
	)

	// Create context with timeout to prevent hanging
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbContainer, err := postgres.Run(
		ctx,
		"postgres:latest",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	database = dbName
	password = dbPwd
	username = dbUser

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	host = dbHost
	port = dbPort.Port()

	return dbContainer.Terminate, err
}

func TestMain(m *testing.M) {
	var teardown func(context.Context, ...testcontainers.TerminateOption) error

	// Postgres tests are skipped when Docker is unavailable; sqlite tests always run
	if os.Getenv("SKIP_INTEGRATION") == "" && (os.Getenv("CI") != "" || isDockerAvailable()) {
		var err error
		teardown, err = mustStartPostgresContainer()
		postgresAvailable = err == nil
	}
	driver = DriverPostgres

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}

	os.Exit(code)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func requirePostgres(t *testing.T) {
	t.Helper()
	if !postgresAvailable {
		t.Skip("postgres container not available")
	}
}

func postgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", username, password, host, port, database)
}

func openSQLite(t *testing.T) Service {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "crash.db")

	if err := RunMigrations(DriverSQLite, dsn, ""); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	srv, err := Open(DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestNew(t *testing.T) {
	requirePostgres(t)

	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}
}

func TestHealth(t *testing.T) {
	requirePostgres(t)

	srv := New()

	stats := srv.Health()

	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s", stats["status"])
	}

	if _, ok := stats["error"]; ok {
		t.Fatalf("expected error not to be present")
	}

	if stats["message"] != "It's healthy" {
		t.Fatalf("expected message to be 'It's healthy', got %s", stats["message"])
	}
}

func TestClose(t *testing.T) {
	requirePostgres(t)

	srv := New()

	if srv.Close() != nil {
		t.Fatalf("expected Close() to return nil")
	}
}

func TestPostgres_MigrateAndSaveRound(t *testing.T) {
	requirePostgres(t)

	dsn := postgresDSN()
	if err := RunMigrations(DriverPostgres, dsn, ""); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	srv, err := Open(DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer srv.Close()

	ended := time.Now().UTC().Truncate(time.Microsecond)
	record := RoundRecord{
		RunID:      "pg-run",
		RoundID:    1,
		CrashPoint: 3.14,
		ServerSeed: "seed",
		ClientSeed: "client",
		Nonce:      1,
		Commitment: game.HashCommitment("seed"),
		LaunchedAt: ended.Add(-4 * time.Second),
		EndedAt:    ended,
	}
	if err := srv.SaveRound(context.Background(), record); err != nil {
		t.Fatalf("SaveRound() error = %v", err)
	}
	if err := srv.SaveRound(context.Background(), record); err == nil {
		t.Error("SaveRound() accepted a duplicate round")
	}

	rounds, err := srv.RecentRounds(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRounds() error = %v", err)
	}
	if len(rounds) == 0 || rounds[0].CrashPoint != 3.14 {
		t.Fatalf("RecentRounds() = %+v, want the saved round first", rounds)
	}

	version, dirty, err := GetMigrationVersion(DriverPostgres, dsn, "")
	if err != nil || dirty || version != 2 {
		t.Errorf("GetMigrationVersion() = %d, %v, %v; want 2, false, nil", version, dirty, err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "whatever"); err == nil {
		t.Error("Open() accepted an unsupported driver")
	}
}

func TestSQLite_Health(t *testing.T) {
	srv := openSQLite(t)

	stats := srv.Health()
	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s", stats["status"])
	}
	if stats["driver"] != DriverSQLite {
		t.Errorf("driver = %s, want sqlite", stats["driver"])
	}
}

func TestSQLite_RoundsNewestFirst(t *testing.T) {
	srv := openSQLite(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, c := range []float64{1.5, 12.0, 2.25} {
		err := srv.SaveRound(ctx, RoundRecord{
			RunID:      "run",
			RoundID:    int64(i + 1),
			CrashPoint: c,
			LaunchedAt: start.Add(time.Duration(i) * time.Minute),
			EndedAt:    start.Add(time.Duration(i)*time.Minute + 10*time.Second),
		})
		if err != nil {
			t.Fatalf("SaveRound() error = %v", err)
		}
	}

	rounds, err := srv.RecentRounds(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRounds() error = %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("len(RecentRounds()) = %d, want 2", len(rounds))
	}
	if rounds[0].RoundID != 3 || rounds[1].RoundID != 2 {
		t.Errorf("round order = %d, %d; want 3, 2", rounds[0].RoundID, rounds[1].RoundID)
	}
	if !rounds[0].EndedAt.Equal(start.Add(2*time.Minute + 10*time.Second)) {
		t.Errorf("EndedAt = %v", rounds[0].EndedAt)
	}
}

func TestSQLite_CrashPointCheck(t *testing.T) {
	srv := openSQLite(t)

	err := srv.SaveRound(context.Background(), RoundRecord{RunID: "run", RoundID: 1, CrashPoint: 0.5})
	if err == nil {
		t.Error("SaveRound() accepted a crash point below the floor")
	}
}

func TestSQLite_EventsByRun(t *testing.T) {
	srv := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	events := []game.Event{
		{Type: game.EventBetPlaced, RoundID: 1, At: at, Actor: game.PlayerActor, BetID: "b1", Amount: 10, Balance: 90},
		{Type: game.EventCashout, RoundID: 1, At: at.Add(time.Second), Actor: game.PlayerActor, BetID: "b1", Multiplier: 2, Payout: 20, Balance: 110, Auto: true},
	}
	for _, ev := range events {
		if err := srv.SaveEvent(ctx, "run-a", ev); err != nil {
			t.Fatalf("SaveEvent() error = %v", err)
		}
	}
	if err := srv.SaveEvent(ctx, "run-b", game.Event{Type: game.EventCrash, RoundID: 1, At: at, Multiplier: 3}); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}

	got, err := srv.Events(ctx, "run-a")
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Events()) = %d, want 2", len(got))
	}
	if got[1].Type != game.EventCashout || !got[1].Auto || got[1].Payout != 20 {
		t.Errorf("Events()[1] = %+v", got[1])
	}
	if !got[0].At.Equal(at) {
		t.Errorf("At = %v, want %v", got[0].At, at)
	}

	all, err := srv.Events(ctx, "")
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(Events(all)) = %d, want 3", len(all))
	}
}

func TestSQLite_MigrationVersionAndRollback(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "crash.db")

	version, dirty, err := GetMigrationVersion(DriverSQLite, dsn, "")
	if err != nil || version != 0 || dirty {
		t.Fatalf("fresh GetMigrationVersion() = %d, %v, %v", version, dirty, err)
	}

	if err := RunMigrations(DriverSQLite, dsn, ""); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if err := RunMigrations(DriverSQLite, dsn, ""); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}

	version, _, _ = GetMigrationVersion(DriverSQLite, dsn, "")
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}

	if err := RollbackMigration(DriverSQLite, dsn, ""); err != nil {
		t.Fatalf("RollbackMigration() error = %v", err)
	}
	version, _, _ = GetMigrationVersion(DriverSQLite, dsn, "")
	if version != 1 {
		t.Errorf("version after rollback = %d, want 1", version)
	}
}

func TestSQLite_MigrationsFromDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "crash.db")

	if err := RunMigrations(DriverSQLite, dsn, "migrations/sqlite"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	version, _, err := GetMigrationVersion(DriverSQLite, dsn, "migrations/sqlite")
	if err != nil || version != 2 {
		t.Errorf("GetMigrationVersion() = %d, %v; want 2", version, err)
	}
}
