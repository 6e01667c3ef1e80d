package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/inbox"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/transport"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Notifier receives operator notifications and journal entries
type Notifier interface {
	Deliver(messages ...inbox.Message) error
	Post(entry inbox.Entry) error
}

// Dispatcher transmits delivery packages
type Dispatcher interface {
	Dispatch(ctx context.Context, method models.DeliveryMethod, pkg transport.Package) (*transport.Receipt, error)
}

// Options configures a Repository. Zero values fall back to defaults.
type Options struct {
	Logger           cmtlog.Logger
	Notifier         Notifier
	Dispatcher       Dispatcher
	Clock            func() time.Time
	CartonCapacity   int
	DefaultRecipient string
}

type Repository struct {
	db               *gorm.DB
	logger           cmtlog.Logger
	notifier         Notifier
	dispatcher       Dispatcher
	now              func() time.Time
	cartonCapacity   int
	defaultRecipient string
}

func NewRepository(db *gorm.DB, opts Options) *Repository {
	r := &Repository{
		db:               db,
		logger:           opts.Logger,
		notifier:         opts.Notifier,
		dispatcher:       opts.Dispatcher,
		now:              opts.Clock,
		cartonCapacity:   opts.CartonCapacity,
		defaultRecipient: opts.DefaultRecipient,
	}
	if r.logger == nil {
		r.logger = cmtlog.NewNopLogger()
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	if r.cartonCapacity <= 0 {
		r.cartonCapacity = 50
	}
	if r.defaultRecipient == "" {
		r.defaultRecipient = "CIH Bank"
	}
	return r
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
}

// ConnectPostgres opens the PostgreSQL database, retrying while the server comes up
func ConnectPostgres(dsn string, attempts int, log cmtlog.Logger) (*gorm.DB, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := range attempts {
		log.Info("Connection attempt", "attempt", i+1)
		db, err := gorm.Open(postgres.Open(dsn), gormConfig())
		if err == nil {
			log.Info("Connected to Postgres")
			return db, nil
		}
		lastErr = err
		log.Error("Connection attempt failed", "attempt", i+1, "err", err)
		if i < attempts-1 {
			time.Sleep(2 * time.Second)
		}
	}
	return nil, fmt.Errorf("connecting to postgres after %d attempts: %w", attempts, lastErr)
}

// OpenSQLite opens a SQLite database file with foreign keys enforced
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	return db, nil
}

func (r *Repository) Migrate() error {
	err := r.db.AutoMigrate(
		&models.Operator{},
		&models.Sequence{},
		&models.Intake{},
		&models.Carton{},
		&models.Delivery{},
		&models.Folder{},
		&models.Processing{},
		&models.Scan{},
		&models.Indexing{},
	)
	if err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	for code, seq := range sequenceDefaults {
		seq.Code = code
		if err := r.db.Where("code = ?", code).FirstOrCreate(&seq).Error; err != nil {
			return fmt.Errorf("creating sequence %s: %w", code, err)
		}
	}
	r.logger.Info("Database migration completed successfully")
	return nil
}

// Seed creates one demo operator per group when no operator exists yet
func (r *Repository) Seed() error {
	var operatorCount int64
	r.db.Model(&models.Operator{}).Count(&operatorCount)
	if operatorCount > 0 {
		r.logger.Info("Seed data already exists, skipping...")
		return nil
	}

	r.logger.Info("Seeding database with initial data...")
	operators := []models.Operator{
		{ID: "OPR-001", Name: "Salma Bennani", Group: models.GroupArchivist, Email: "archives@example.com"},
		{ID: "OPR-002", Name: "Youssef Alaoui", Group: models.GroupProcessingAgent},
		{ID: "OPR-003", Name: "Karim Tazi", Group: models.GroupStockManager},
		{ID: "OPR-004", Name: "Nadia Idrissi", Group: models.GroupScanOperator},
		{ID: "OPR-005", Name: "Omar Chraibi", Group: models.GroupIndexingAgent},
	}
	for _, op := range operators {
		op.Active = true
		op.ReceiveNotifications = true
		if err := r.db.Create(&op).Error; err != nil {
			return fmt.Errorf("creating operator %s: %w", op.ID, err)
		}
	}
	r.logger.Info("Database seeding completed successfully")
	return nil
}

// inTx runs fn inside one transaction. Notifications queued on the outbox
// are only flushed once the transaction committed.
func (r *Repository) inTx(entity string, fn func(tx *gorm.DB, out *outbox) error) *RepositoryError {
	out := &outbox{}
	dbTx := r.db.Begin()
	if dbTx.Error != nil {
		return toRepositoryError(dbTx.Error, entity)
	}
	defer func() {
		if p := recover(); p != nil {
			dbTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(dbTx, out); err != nil {
		dbTx.Rollback()
		return toRepositoryError(err, entity)
	}
	if err := dbTx.Commit().Error; err != nil {
		return &RepositoryError{
			Code:    ErrCodeCommit,
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}
	r.flush(out)
	return nil
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// save writes every column of v without touching its associations
func save(tx *gorm.DB, v any) error {
	return tx.Omit(clause.Associations).Save(v).Error
}

func lockByID[T any](tx *gorm.DB, column, id, entity string) (*T, error) {
	var v T
	err := forUpdate(tx).Where(column+" = ?", id).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(entity, id)
		}
		return nil, err
	}
	return &v, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
