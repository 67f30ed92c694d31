package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jo-hoe/imagequiz/internal/backend/auth"
	"github.com/jo-hoe/imagequiz/internal/backend/checks"
	"github.com/jo-hoe/imagequiz/internal/backend/database"
	"github.com/jo-hoe/imagequiz/internal/backend/progress"
	"github.com/jo-hoe/imagequiz/internal/backend/storage"
	"github.com/jo-hoe/imagequiz/internal/backend/thumbnail"
	"github.com/jo-hoe/imagequiz/internal/quiz"
	"github.com/rs/zerolog/log"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 8
)

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	progressStore   progress.Store
	fileStore       *storage.FileStore
	checks          *checks.CheckInvoker
	hasher          *auth.PasswordHasher
	tokens          *auth.TokenIssuer
	metrics         *Metrics

	// catalog guards the image set: pair selection reads it, edits and deletes write it.
	catalog  sync.RWMutex
	sessions *sessionLocks
}

// PairResult is the next quiz question of a session, or a cycle reset.
type PairResult struct {
	Reset            bool
	Correct          *database.Image
	Incorrect        *database.Image
	TotalPairs       int
	RemainingPairs   int
	CurrentPairIndex int
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	service, err := newCoreService(config, databaseService)
	if err != nil {
		_ = databaseService.Close()
		return nil, err
	}
	return service, nil
}

func newCoreService(config *ServiceConfig, databaseService database.DatabaseService) (*CoreService, error) {
	invoker, err := checks.NewCheckInvokerFromConfig(checks.DefaultRegistry, config.CheckConfigs())
	if err != nil {
		return nil, fmt.Errorf("failed to set up upload checks: %w", err)
	}

	fileStore, err := storage.NewFileStore(config.Uploads.Directory)
	if err != nil {
		return nil, err
	}

	hasher, err := auth.NewPasswordHasher(config.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(config.Auth.SigningKey, config.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	progressStore, err := progress.NewStore(progress.Options{
		Type:      config.Progress.Type,
		Address:   config.Progress.Address,
		Password:  config.Progress.Password,
		DB:        config.Progress.DB,
		KeyPrefix: config.Progress.KeyPrefix,
		TTL:       config.Progress.TTL,
	}, databaseService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize progress store: %w", err)
	}

	log.Info().
		Str("progress_store", config.Progress.Type).
		Strs("checks", invoker.Names()).
		Str("upload_dir", fileStore.Dir()).
		Msg("core service initialized")

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		progressStore:   progressStore,
		fileStore:       fileStore,
		checks:          invoker,
		hasher:          hasher,
		tokens:          tokens,
		metrics:         newMetrics(),
		sessions:        newSessionLocks(),
	}, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info().Str("type", config.Database.Type).Msg("database initialized successfully")
	return databaseService, nil
}

func (service *CoreService) Close() error {
	return errors.Join(service.progressStore.Close(), service.databaseService.Close())
}

func (service *CoreService) Tokens() *auth.TokenIssuer {
	return service.tokens
}

func (service *CoreService) Metrics() *Metrics {
	return service.metrics
}

func (service *CoreService) UploadDirectory() string {
	return service.fileStore.Dir()
}

// storageError wraps a persistence failure, keeping not-found errors recognisable.
func storageError(op string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// AddImage validates and stores an uploaded image. New images sort last.
func (service *CoreService) AddImage(ctx context.Context, data []byte, isCorrect bool) (*database.Image, error) {
	if err := service.checks.Run(data); err != nil {
		service.metrics.uploadsRejected.Inc()
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	format, err := checks.DetectFormat(data)
	if err != nil {
		service.metrics.uploadsRejected.Inc()
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, storageError("generate image id", err)
	}
	fileName := id.String() + checks.Extension(format)

	if err := service.fileStore.Save(fileName, data); err != nil {
		return nil, storageError("save image file", err)
	}

	image := &database.Image{
		ID:        id.String(),
		ImagePath: service.config.Uploads.PublicPath + "/" + fileName,
		FileName:  fileName,
		Format:    format,
		IsCorrect: isCorrect,
	}

	service.catalog.Lock()
	err = service.databaseService.CreateImage(ctx, image)
	service.catalog.Unlock()
	if err != nil {
		if rmErr := service.fileStore.Remove(fileName); rmErr != nil {
			log.Warn().Err(rmErr).Str("file", fileName).Msg("AddImage: failed to remove orphaned file")
		}
		return nil, storageError("create image", err)
	}

	service.metrics.uploaded(isCorrect)
	log.Info().
		Str("image_id", image.ID).
		Str("format", format).
		Bool("is_correct", isCorrect).
		Int("size_bytes", len(data)).
		Msg("image uploaded")
	return image, nil
}

func (service *CoreService) ListImages(ctx context.Context) ([]*database.Image, error) {
	images, err := service.databaseService.GetImages(ctx)
	if err != nil {
		return nil, storageError("list images", err)
	}
	return images, nil
}

func (service *CoreService) GetImage(ctx context.Context, id string) (*database.Image, error) {
	image, err := service.databaseService.GetImageByID(ctx, id)
	if err != nil {
		return nil, storageError("get image", err)
	}
	return image, nil
}

// Thumbnail returns a PNG preview of the image, width pixels wide at most.
func (service *CoreService) Thumbnail(ctx context.Context, id string, width int) ([]byte, error) {
	if width < thumbnail.MinWidth || width > thumbnail.MaxWidth {
		return nil, fmt.Errorf("%w: width must be between %d and %d", ErrValidation, thumbnail.MinWidth, thumbnail.MaxWidth)
	}

	image, err := service.databaseService.GetImageByID(ctx, id)
	if err != nil {
		return nil, storageError("get image", err)
	}
	data, err := service.fileStore.Read(image.FileName)
	if err != nil {
		return nil, storageError("read image file", err)
	}

	thumb, err := thumbnail.Scale(data, width)
	if err != nil {
		return nil, storageError("scale image", err)
	}
	return thumb, nil
}

// UpdateImage changes the correctness flag only; id, path and creation time stay.
func (service *CoreService) UpdateImage(ctx context.Context, id string, isCorrect bool) (*database.Image, error) {
	service.catalog.Lock()
	defer service.catalog.Unlock()

	image, err := service.databaseService.SetImageCorrectness(ctx, id, isCorrect)
	if err != nil {
		return nil, storageError("update image", err)
	}
	log.Info().Str("image_id", id).Bool("is_correct", isCorrect).Msg("image updated")
	return image, nil
}

// DeleteImage removes the image record and file and clears the progress of every
// session. The file is only removed once the record is gone; a file that cannot be
// removed is logged and does not fail the deletion.
func (service *CoreService) DeleteImage(ctx context.Context, id string) error {
	service.catalog.Lock()
	defer service.catalog.Unlock()

	image, err := service.databaseService.GetImageByID(ctx, id)
	if err != nil {
		return storageError("get image", err)
	}

	if err := service.databaseService.DeleteImage(ctx, id); err != nil {
		return storageError("delete image", err)
	}

	if err := service.fileStore.Remove(image.FileName); err != nil {
		log.Error().Err(err).Str("image_id", id).Str("file", image.FileName).Msg("DeleteImage: failed to delete image file")
	}

	if err := service.progressStore.ClearAll(ctx); err != nil {
		return storageError("clear quiz progress", err)
	}

	service.metrics.imagesDeleted.Inc()
	log.Info().Str("image_id", id).Msg("image deleted, quiz progress cleared")
	return nil
}

// ReorderImages sets the stable order used for pairing. ids must name every image once.
func (service *CoreService) ReorderImages(ctx context.Context, ids []string) ([]*database.Image, error) {
	service.catalog.Lock()
	defer service.catalog.Unlock()

	images, err := service.databaseService.GetImages(ctx)
	if err != nil {
		return nil, storageError("list images", err)
	}

	existing := make(map[string]string, len(images))
	for _, image := range images {
		existing[image.ID] = image.Rank
	}
	if len(ids) != len(existing) {
		return nil, fmt.Errorf("%w: order lists %d ids, there are %d images", ErrValidation, len(ids), len(existing))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			return nil, fmt.Errorf("%w: unknown image id %s", ErrValidation, id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: image id %s listed twice", ErrValidation, id)
		}
		seen[id] = struct{}{}
	}

	updates := database.Reorder(existing, ids)
	if err := service.databaseService.UpdateImageRanks(ctx, updates); err != nil {
		return nil, storageError("update image order", err)
	}
	log.Info().Int("changed_ranks", len(updates)).Msg("image order updated")

	images, err = service.databaseService.GetImages(ctx)
	if err != nil {
		return nil, storageError("list images", err)
	}
	return images, nil
}

// NewSession returns a fresh quiz session id.
func (service *CoreService) NewSession() (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", storageError("generate session id", err)
	}
	return id, nil
}

// NextPair selects the next correct/incorrect pair for the session and records it as
// shown. A Reset result means the cycle is over and the caller should ask again.
func (service *CoreService) NextPair(ctx context.Context, sessionID string) (*PairResult, error) {
	sessionID, err := NormalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	service.catalog.RLock()
	defer service.catalog.RUnlock()
	unlock := service.sessions.lock(sessionID)
	defer unlock()

	images, err := service.databaseService.GetImages(ctx)
	if err != nil {
		return nil, storageError("list images", err)
	}
	shown, err := service.progressStore.Load(ctx, sessionID)
	if err != nil {
		return nil, storageError("load quiz progress", err)
	}

	items := make([]quiz.Item, len(images))
	byID := make(map[string]*database.Image, len(images))
	for i, image := range images {
		items[i] = quiz.Item{ID: image.ID, IsCorrect: image.IsCorrect}
		byID[image.ID] = image
	}

	selection, err := quiz.Select(items, shown)
	if err != nil {
		return nil, err
	}

	if err := service.progressStore.Save(ctx, sessionID, selection.Shown); err != nil {
		return nil, storageError("save quiz progress", err)
	}

	if selection.Reset {
		service.metrics.cycleResets.Inc()
		log.Info().Str("session_id", sessionID).Int("total_pairs", selection.TotalPairs).Msg("quiz cycle reset")
		return &PairResult{Reset: true, TotalPairs: selection.TotalPairs}, nil
	}

	service.metrics.pairsServed.Inc()
	log.Debug().
		Str("session_id", sessionID).
		Str("correct_id", selection.Correct.ID).
		Str("incorrect_id", selection.Incorrect.ID).
		Int("current_pair", selection.CurrentPairIndex).
		Int("remaining_pairs", selection.RemainingPairs).
		Msg("quiz pair served")

	return &PairResult{
		Correct:          byID[selection.Correct.ID],
		Incorrect:        byID[selection.Incorrect.ID],
		TotalPairs:       selection.TotalPairs,
		RemainingPairs:   selection.RemainingPairs,
		CurrentPairIndex: selection.CurrentPairIndex,
	}, nil
}

// ResetProgress starts the session's cycle over.
func (service *CoreService) ResetProgress(ctx context.Context, sessionID string) error {
	sessionID, err := NormalizeSessionID(sessionID)
	if err != nil {
		return err
	}
	unlock := service.sessions.lock(sessionID)
	defer unlock()

	if err := service.progressStore.Clear(ctx, sessionID); err != nil {
		return storageError("clear quiz progress", err)
	}
	return nil
}

func validateCredentials(username, password string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, minUsernameLength, maxUsernameLength)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

// Register creates an administrator. It is open while no user exists and afterwards
// only when registration is enabled in the configuration.
func (service *CoreService) Register(ctx context.Context, username, password string) (*database.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	if !service.config.Auth.AllowRegistration {
		count, err := service.databaseService.CountUsers(ctx)
		if err != nil {
			return nil, storageError("count users", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: registration is closed", ErrUnauthorized)
		}
	}

	return service.createUser(ctx, username, password)
}

func (service *CoreService) createUser(ctx context.Context, username, password string) (*database.User, error) {
	hash, err := service.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	user, err := service.databaseService.CreateUser(ctx, username, hash)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, fmt.Errorf("%w: username already exists", ErrValidation)
	}
	if err != nil {
		return nil, storageError("create user", err)
	}
	log.Info().Str("username", username).Msg("user registered")
	return user, nil
}

// Login returns a bearer token for valid credentials. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (service *CoreService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := service.databaseService.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		return "", fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err != nil {
		return "", storageError("get user", err)
	}

	if err := service.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return "", fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	token, err := service.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return token, nil
}

// EnsureAdmin creates the configured administrator when it does not exist yet.
func (service *CoreService) EnsureAdmin(ctx context.Context) error {
	username, password := service.config.Auth.AdminUsername, service.config.Auth.AdminPassword
	if password == "" {
		return nil
	}

	_, err := service.databaseService.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return storageError("get user", err)
	}

	if err := validateCredentials(username, password); err != nil {
		return err
	}
	if _, err := service.createUser(ctx, username, password); err != nil {
		return err
	}
	log.Info().Str("username", username).Msg("admin user created")
	return nil
}
