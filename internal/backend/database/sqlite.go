package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// One connection: keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(s.db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// The file is created on connect, so a successful ping means it exists.
	return s.db.Ping() == nil
}

const imageColumns = "id, image_path, file_name, format, is_correct, rank, created_at"

func scanImage(row interface{ Scan(dest ...any) error }) (*Image, error) {
	var img Image
	if err := row.Scan(&img.ID, &img.ImagePath, &img.FileName, &img.Format, &img.IsCorrect, &img.Rank, &img.CreatedAt); err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *SQLiteDatabase) CreateImage(ctx context.Context, img *Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}

	if img.ID == "" {
		id, err := generateID()
		if err != nil {
			return fmt.Errorf("failed to generate image id: %w", err)
		}
		img.ID = id
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}

	return runInTransaction(ctx, s.db, func(txCtx context.Context) error {
		exec := getExecutor(txCtx, s.db)

		if img.Rank == "" {
			var last sql.NullString
			if err := exec.QueryRowContext(txCtx, "SELECT MAX(rank) FROM images").Scan(&last); err != nil {
				return fmt.Errorf("failed to read last rank: %w", err)
			}
			img.Rank = NextRank(last.String)
		}

		_, err := exec.ExecContext(txCtx,
			"INSERT INTO images ("+imageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			img.ID, img.ImagePath, img.FileName, img.Format, img.IsCorrect, img.Rank, img.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert image: %w", err)
		}
		return nil
	})
}

func (s *SQLiteDatabase) GetImages(ctx context.Context) ([]*Image, error) {
	rows, err := getExecutor(ctx, s.db).QueryContext(ctx,
		"SELECT "+imageColumns+" FROM images ORDER BY rank ASC, created_at ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	images := make([]*Image, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *SQLiteDatabase) GetImageByID(ctx context.Context, id string) (*Image, error) {
	row := getExecutor(ctx, s.db).QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *SQLiteDatabase) SetImageCorrectness(ctx context.Context, id string, isCorrect bool) (*Image, error) {
	var img *Image
	err := runInTransaction(ctx, s.db, func(txCtx context.Context) error {
		res, err := getExecutor(txCtx, s.db).ExecContext(txCtx, "UPDATE images SET is_correct = ? WHERE id = ?", isCorrect, id)
		if err != nil {
			return fmt.Errorf("failed to update image: %w", err)
		}
		if err := expectAffected(res, "image", id); err != nil {
			return err
		}
		img, err = s.GetImageByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *SQLiteDatabase) UpdateImageRanks(ctx context.Context, ranks map[string]string) error {
	if len(ranks) == 0 {
		return nil
	}
	return runInTransaction(ctx, s.db, func(txCtx context.Context) error {
		exec := getExecutor(txCtx, s.db)
		for id, rank := range ranks {
			res, err := exec.ExecContext(txCtx, "UPDATE images SET rank = ? WHERE id = ?", rank, id)
			if err != nil {
				return fmt.Errorf("failed to update rank of image %s: %w", id, err)
			}
			if err := expectAffected(res, "image", id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteDatabase) DeleteImage(ctx context.Context, id string) error {
	res, err := getExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return expectAffected(res, "image", id)
}

func (s *SQLiteDatabase) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	id, err := generateID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	user := &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = getExecutor(ctx, s.db).ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("user %s: %w", username, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteDatabase) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := getExecutor(ctx, s.db).QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLiteDatabase) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := getExecutor(ctx, s.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteDatabase) GetProgress(ctx context.Context, sessionID string) ([]string, error) {
	var raw string
	err := getExecutor(ctx, s.db).QueryRowContext(ctx,
		"SELECT shown_image_ids FROM quiz_progress WHERE session_id = ?", sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	shown := []string{}
	if err := json.Unmarshal([]byte(raw), &shown); err != nil {
		return nil, fmt.Errorf("failed to decode progress of session %s: %w", sessionID, err)
	}
	return shown, nil
}

func (s *SQLiteDatabase) SaveProgress(ctx context.Context, sessionID string, shown []string) error {
	if shown == nil {
		shown = []string{}
	}
	raw, err := json.Marshal(shown)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	_, err = getExecutor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO quiz_progress (session_id, shown_image_ids, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			shown_image_ids = excluded.shown_image_ids,
			updated_at = excluded.updated_at`,
		sessionID, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteProgress(ctx context.Context, sessionID string) error {
	_, err := getExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM quiz_progress WHERE session_id = ?", sessionID)
	return err
}

func (s *SQLiteDatabase) DeleteAllProgress(ctx context.Context) error {
	_, err := getExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM quiz_progress")
	return err
}

func expectAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}
