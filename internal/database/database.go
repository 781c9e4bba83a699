package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Database - хранилище на пуле соединений PostgreSQL
type Database struct {
	db  *pgxpool.Pool
	dsn string
}

// DBExecutor - общий интерфейс пула и транзакции.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	pingTimeout       = 2 * time.Second
	healthCheckPeriod = 30 * time.Second
	maxConnIdleTime   = 5 * time.Minute
)

func checkConnection(ctx context.Context, db *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	return nil
}

// New открывает пул подключений по dsn и проверяет соединение
func New(ctx context.Context, dsn string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("некорректная строка подключения: %w", err)
	}
	config.HealthCheckPeriod = healthCheckPeriod
	config.MaxConnIdleTime = maxConnIdleTime

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании пула подключений: %w", err)
	}

	if err := checkConnection(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Log.Info("database connected",
		zap.String("host", config.ConnConfig.Host),
		zap.String("database", config.ConnConfig.Database),
		zap.Int32("maxConns", config.MaxConns),
	)

	return &Database{db: db, dsn: dsn}, nil
}

// RunMigrations применяет встроенные миграции. Повторный запуск без новых миграций не ошибка.
func (d *Database) RunMigrations() error {
	driver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("не удалось создать источник миграций: %w", err)
	}

	migrations, err := migrate.NewWithSourceInstance("iofs", driver, d.dsn)
	if err != nil {
		return fmt.Errorf("не удалось инициализировать миграции: %w", err)
	}
	defer migrations.Close()

	if err := migrations.Up(); err != nil {
		// Обрабатываем ошибку отсутствия новых миграций отдельно
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Log.Info("no new migrations")
			return nil
		}
		return fmt.Errorf("ошибка при выполнении миграций: %w", err)
	}

	logger.Log.Info("migrations applied")
	return nil
}

// Ping проверяет соединение для health-check.
func (d *Database) Ping(ctx context.Context) error {
	return checkConnection(ctx, d.db)
}

// inTx выполняет fn в одной транзакции; любая ошибка откатывает все изменения.
func (d *Database) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, d.db, fn)
}

// isUniqueViolation сообщает, что запрос нарушил ограничение уникальности constraint.
// Пустой constraint означает любое ограничение.
func isUniqueViolation(err error, constraint string) bool {
	var e *pgconn.PgError
	if !errors.As(err, &e) || e.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || e.ConstraintName == constraint
}

// Close закрывает пул подключений к базе данных.
func (d *Database) Close() {
	if d.db != nil {
		d.db.Close()
	}
}
