// Package eventstore archives committed lending events in a SQL database.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"moneymarket/core/events"
)

// recordNamespace scopes the name based record ids.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("moneymarket/lending/events"))

// DefaultLimit caps List when the query sets no limit.
const DefaultLimit = 100

// MaxLimit is the largest page List returns.
const MaxLimit = 1000

// Record is one archived event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	Asset      string    `gorm:"size:96;index"`
	Account    string    `gorm:"size:96;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName pins the table name.
func (Record) TableName() string { return "lending_events" }

// Decode returns the attribute map of the record.
func (r Record) Decode() (map[string]string, error) {
	out := map[string]string{}
	if r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, fmt.Errorf("decode attributes of %s: %w", r.ID, err)
	}
	return out, nil
}

// Query filters List. Empty fields match everything.
type Query struct {
	Type    string
	Asset   string
	Account string
	// After returns records with a larger sequence.
	After uint64
	Limit int
}

// Store persists events and serves them back in commit order.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	clock  func() time.Time

	mu   sync.Mutex
	next uint64
}

// Open connects to driver ("sqlite" or "postgres") and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("eventstore: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventstore: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an open database, migrating the schema and resuming the
// sequence after the last stored record.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("eventstore: database required")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventstore: migrate: %w", err)
	}
	var last Record
	err := db.Order("sequence desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("eventstore: load sequence: %w", err)
	}
	return &Store{
		db:     db,
		logger: slog.Default(),
		clock:  time.Now,
		next:   last.Sequence + 1,
	}, nil
}

// SetLogger replaces the logger used to report failed writes.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetClock overrides the clock stamping new records.
func (s *Store) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// Emit implements events.Emitter. Write failures are logged; the committed
// state change is not affected.
func (s *Store) Emit(evt events.Event) {
	if _, err := s.Append(context.Background(), evt); err != nil {
		s.logger.Error("archive lending event", "type", evt.EventType(), "error", err)
	}
}

// Append stores evt with the next sequence number.
func (s *Store) Append(ctx context.Context, evt events.Event) (Record, error) {
	if evt == nil {
		return Record{}, errors.New("eventstore: nil event")
	}
	payload := evt.Event()
	attrs := map[string]string{}
	if payload != nil && payload.Attributes != nil {
		attrs = payload.Attributes
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return Record{}, fmt.Errorf("eventstore: encode attributes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record := Record{
		ID:         recordID(s.next, evt.EventType()),
		Sequence:   s.next,
		Type:       evt.EventType(),
		Asset:      firstOf(attrs, "asset", "debtAsset"),
		Account:    attrs["user"],
		Attributes: string(encoded),
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Record{}, fmt.Errorf("eventstore: insert: %w", err)
	}
	s.next++
	return record, nil
}

// List returns the records matching q in sequence order.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	tx := s.db.WithContext(ctx).Model(&Record{}).Where("sequence > ?", q.After)
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Asset != "" {
		tx = tx.Where("asset = ?", q.Asset)
	}
	if q.Account != "" {
		tx = tx.Where("account = ?", q.Account)
	}
	var out []Record
	if err := tx.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("eventstore: list: %w", err)
	}
	return out, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordID(sequence uint64, eventType string) uuid.UUID {
	return uuid.NewSHA1(recordNamespace, []byte(strconv.FormatUint(sequence, 10)+"/"+eventType))
}

func firstOf(attrs map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}
