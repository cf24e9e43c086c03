package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"crashround/internal/game"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	roundsTable = "rounds"
	eventsTable = "feed_events"
)

var roundColumns = []string{
	"run_id", "round_id", "crash_point", "server_seed", "client_seed",
	"nonce", "commitment", "launched_at", "ended_at",
}

var eventColumns = []string{
	"run_id", "round_id", "type", "actor", "bet_id",
	"amount", "multiplier", "payout", "balance", "auto", "at",
}

// Service is the round archive.
type Service interface {
	Health() map[string]string
	Close() error
	Driver() string
	Migrate() error
	SaveRound(ctx context.Context, r RoundRecord) error
	SaveEvent(ctx context.Context, runID string, ev game.Event) error
	RecentRounds(ctx context.Context, limit int) ([]RoundRecord, error)
	Events(ctx context.Context, runID string) ([]game.Event, error)
}

type RoundRecord struct {
	RunID      string    `json:"run_id"`
	RoundID    int64     `json:"round_id"`
	CrashPoint float64   `json:"crash_point"`
	ServerSeed string    `json:"server_seed"`
	ClientSeed string    `json:"client_seed"`
	Nonce      int64     `json:"nonce"`
	Commitment string    `json:"commitment"`
	LaunchedAt time.Time `json:"launched_at"`
	EndedAt    time.Time `json:"ended_at"`
}

type service struct {
	db     *sql.DB
	driver string
	dsn    string
	sb     sq.StatementBuilderType
}

var (
	driver     = getEnv("DB_DRIVER", DriverPostgres)
	dbPath     = getEnv("DB_PATH", "crash.db")
	database   = os.Getenv("BLUEPRINT_DB_DATABASE")
	password   = os.Getenv("BLUEPRINT_DB_PASSWORD")
	username   = os.Getenv("BLUEPRINT_DB_USERNAME")
	port       = os.Getenv("BLUEPRINT_DB_PORT")
	host       = os.Getenv("BLUEPRINT_DB_HOST")
	schema     = getEnv("BLUEPRINT_DB_SCHEMA", "public")
	dbInstance *service
)

// New opens the archive configured by the environment. It returns nil when
// the database is unreachable so the game can run without an archive.
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	dsn := dbPath
	if driver == DriverPostgres {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s", username, password, host, port, database, schema)
	}

	srv, err := open(driver, dsn)
	if err != nil {
		log.Printf("[DB] %v", err)
		log.Println("[DB] Running without round archive")
		return nil
	}
	dbInstance = srv
	return dbInstance
}

// Open connects to a postgres or sqlite archive and verifies the connection.
func Open(driverName, dsn string) (Service, error) {
	srv, err := open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

func open(driverName, dsn string) (*service, error) {
	sqlDriver, placeholder, err := resolveDriver(driverName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", driverName, err)
	}

	if driverName == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		db.SetMaxOpenConns(1)
	}

	log.Printf("[DB] Connected (%s)", driverName)
	return &service{
		db:     db,
		driver: driverName,
		dsn:    dsn,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func resolveDriver(name string) (string, sq.PlaceholderFormat, error) {
	switch name {
	case DriverPostgres:
		return "pgx", sq.Dollar, nil
	case DriverSQLite:
		return "sqlite", sq.Question, nil
	default:
		return "", nil, fmt.Errorf("unsupported database driver %q", name)
	}
}

func (s *service) Driver() string {
	return s.driver
}

// Migrate applies the embedded migrations for the service's driver.
func (s *service) Migrate() error {
	return RunMigrations(s.driver, s.dsn, "")
}

func (s *service) SaveRound(ctx context.Context, r RoundRecord) error {
	query := s.sb.Insert(roundsTable).
		Columns(roundColumns...).
		Values(r.RunID, r.RoundID, r.CrashPoint, r.ServerSeed, r.ClientSeed,
			r.Nonce, r.Commitment, r.LaunchedAt.UTC(), r.EndedAt.UTC())

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build round insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("save round %d: %w", r.RoundID, err)
	}
	return nil
}

func (s *service) SaveEvent(ctx context.Context, runID string, ev game.Event) error {
	query := s.sb.Insert(eventsTable).
		Columns(eventColumns...).
		Values(runID, ev.RoundID, string(ev.Type), ev.Actor, ev.BetID,
			ev.Amount, ev.Multiplier, ev.Payout, ev.Balance, ev.Auto, ev.At.UTC())

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build event insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("save %s event of round %d: %w", ev.Type, ev.RoundID, err)
	}
	return nil
}

// RecentRounds lists archived rounds, newest first.
func (s *service) RecentRounds(ctx context.Context, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.sb.Select(roundColumns...).
		From(roundsTable).
		OrderBy("id DESC").
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rounds query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		var r RoundRecord
		if err := rows.Scan(&r.RunID, &r.RoundID, &r.CrashPoint, &r.ServerSeed, &r.ClientSeed,
			&r.Nonce, &r.Commitment, &r.LaunchedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Events returns the archived engine events in the order they happened.
// An empty runID returns every run.
func (s *service) Events(ctx context.Context, runID string) ([]game.Event, error) {
	query := s.sb.Select("round_id", "type", "actor", "bet_id", "amount", "multiplier", "payout", "balance", "auto", "at").
		From(eventsTable).
		OrderBy("id ASC")
	if runID != "" {
		query = query.Where(sq.Eq{"run_id": runID})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build events query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []game.Event
	for rows.Next() {
		var ev game.Event
		var typ string
		if err := rows.Scan(&ev.RoundID, &typ, &ev.Actor, &ev.BetID, &ev.Amount,
			&ev.Multiplier, &ev.Payout, &ev.Balance, &ev.Auto, &ev.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = game.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	stats["driver"] = s.driver

	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Printf("[DB] Health check failed: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnected from %s database", s.driver)
	if dbInstance == s {
		dbInstance = nil
	}
	return s.db.Close()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
