package database

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreateImage inserts img, filling in ID, Rank and CreatedAt when they are empty.
	// The rank is placed after the current last rank so new images sort last.
	CreateImage(ctx context.Context, img *Image) error
	// GetImages returns all images in their persisted order (rank, then creation time).
	GetImages(ctx context.Context) ([]*Image, error)
	GetImageByID(ctx context.Context, id string) (*Image, error)
	SetImageCorrectness(ctx context.Context, id string, isCorrect bool) (*Image, error)
	// UpdateImageRanks applies id -> rank changes in a single transaction.
	UpdateImageRanks(ctx context.Context, ranks map[string]string) error
	DeleteImage(ctx context.Context, id string) error

	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CountUsers(ctx context.Context) (int, error)

	// Quiz progress keyed by session id. A missing record reads as an empty list.
	GetProgress(ctx context.Context, sessionID string) ([]string, error)
	SaveProgress(ctx context.Context, sessionID string, shown []string) error
	DeleteProgress(ctx context.Context, sessionID string) error
	DeleteAllProgress(ctx context.Context) error
}
