package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jo-hoe/imagequiz/internal/backend/database"
	"github.com/redis/go-redis/v9"
)

// Store persists the shown-ids record of each quiz session.
type Store interface {
	// Load returns the shown ids of the session, or an empty list when there is none.
	Load(ctx context.Context, sessionID string) ([]string, error)
	Save(ctx context.Context, sessionID string, shown []string) error
	Clear(ctx context.Context, sessionID string) error
	// ClearAll drops the progress of every session.
	ClearAll(ctx context.Context) error
	Close() error
}

type Options struct {
	Type      string
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// NewStore builds the configured store. The "database" type keeps progress next to
// the images and needs databaseService.
func NewStore(options Options, databaseService database.DatabaseService) (Store, error) {
	switch options.Type {
	case "", "database":
		if databaseService == nil {
			return nil, fmt.Errorf("database progress store requires a database service")
		}
		return NewDatabaseStore(databaseService), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     options.Address,
			Password: options.Password,
			DB:       options.DB,
		})
		return NewRedisStore(client, options.KeyPrefix, options.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported progress store type: %s", options.Type)
	}
}

// DatabaseStore adapts the database service to Store.
type DatabaseStore struct {
	databaseService database.DatabaseService
}

func NewDatabaseStore(databaseService database.DatabaseService) *DatabaseStore {
	return &DatabaseStore{databaseService: databaseService}
}

func (s *DatabaseStore) Load(ctx context.Context, sessionID string) ([]string, error) {
	return s.databaseService.GetProgress(ctx, sessionID)
}

func (s *DatabaseStore) Save(ctx context.Context, sessionID string, shown []string) error {
	return s.databaseService.SaveProgress(ctx, sessionID, shown)
}

func (s *DatabaseStore) Clear(ctx context.Context, sessionID string) error {
	return s.databaseService.DeleteProgress(ctx, sessionID)
}

func (s *DatabaseStore) ClearAll(ctx context.Context) error {
	return s.databaseService.DeleteAllProgress(ctx)
}

// Close is a no-op; the database service is owned by the caller.
func (s *DatabaseStore) Close() error {
	return nil
}
