package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jo-hoe/imagequiz/internal/backend/auth"
	"github.com/jo-hoe/imagequiz/internal/backend/checks"
	"github.com/jo-hoe/imagequiz/internal/backend/database"
	"github.com/jo-hoe/imagequiz/internal/backend/thumbnail"
	"github.com/jo-hoe/imagequiz/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

const (
	SessionHeader = "X-Quiz-Session"
	sessionQuery  = "session"

	// multipartOverhead leaves room for form boundaries and fields around the image.
	multipartOverhead = 64 << 10
)

type APIService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateImageRequest struct {
	IsCorrect *flexBool `json:"isCorrect" validate:"required"`
}

type reorderRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type pairResponse struct {
	Images         []*database.Image `json:"images"`
	CorrectImageID string            `json:"correctImageId"`
	TotalPairs     int               `json:"totalPairs"`
	RemainingPairs int               `json:"remainingPairs"`
	CurrentPair    int               `json:"currentPair"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// flexBool accepts both JSON booleans and the strings "true" and "false".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var value bool
	if err := json.Unmarshal(data, &value); err == nil {
		*b = flexBool(value)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("isCorrect must be a boolean")
	}
	value, err := strconv.ParseBool(text)
	if err != nil {
		return fmt.Errorf("isCorrect must be a boolean, got %q", text)
	}
	*b = flexBool(value)
	return nil
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
		config:      config,
	}
}

func (service *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/probe", service.probeHandler)
	e.GET("/metrics", echo.WrapHandler(service.coreService.Metrics().Handler()))
	e.Static(service.config.Uploads.PublicPath, service.coreService.UploadDirectory())

	requireToken := auth.RequireToken(service.coreService.Tokens())

	api := e.Group("/api")
	api.GET("/images", service.listImagesHandler)
	api.GET("/images/:id/thumbnail", service.thumbnailHandler)
	api.GET("/quiz/pair", service.quizPairHandler)
	api.GET("/quiz-pair", service.quizPairHandler)
	api.POST("/quiz/sessions", service.newSessionHandler)
	api.POST("/quiz/reset", service.resetProgressHandler)
	api.POST("/register", service.registerHandler)
	api.POST("/login", service.loginHandler)

	uploadLimit := middleware.BodyLimit(fmt.Sprintf("%dB", service.maxUploadBytes()+multipartOverhead))
	api.POST("/upload", service.uploadHandler, requireToken, uploadLimit)
	api.GET("/admin/images", service.listImagesHandler, requireToken)
	api.PUT("/admin/images/order", service.reorderImagesHandler, requireToken)
	api.GET("/admin/images/:id", service.getImageHandler, requireToken)
	api.PUT("/admin/images/:id", service.updateImageHandler, requireToken)
	api.DELETE("/admin/images/:id", service.deleteImageHandler, requireToken)
}

func (service *APIService) maxUploadBytes() int64 {
	if service.config.Uploads.MaxBytes > 0 {
		return service.config.Uploads.MaxBytes
	}
	return checks.DefaultMaxBytes
}

func (service *APIService) probeHandler(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}

// errorJSON maps core error kinds to HTTP status codes.
func errorJSON(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "Internal server error"
	switch {
	case errors.Is(err, core.ErrNotFound):
		status, message = http.StatusNotFound, "Image not found"
	case errors.Is(err, core.ErrInsufficientData):
		status, message = http.StatusBadRequest, "Not enough images for quiz"
	case errors.Is(err, core.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, core.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	default:
		log.Error().Err(err).Str("path", ctx.Path()).Msg("request failed")
	}
	return ctx.JSON(status, errorResponse{Error: message, Code: core.ErrorCode(err)})
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, errorResponse{Error: message, Code: core.ErrorCode(core.ErrValidation)})
}

// bindAndValidate reads the JSON body into req and runs the echo validator on it.
func bindAndValidate(ctx echo.Context, req any) error {
	if err := ctx.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", core.ErrValidation)
	}
	if err := ctx.Validate(req); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return fmt.Errorf("%w: %v", core.ErrValidation, httpErr.Message)
		}
		return fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	return nil
}

func sessionID(ctx echo.Context) string {
	if id := strings.TrimSpace(ctx.Request().Header.Get(SessionHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(ctx.QueryParam(sessionQuery))
}

func (service *APIService) listImagesHandler(ctx echo.Context) error {
	images, err := service.coreService.ListImages(ctx.Request().Context())
	if err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusOK, images)
}

func (service *APIService) getImageHandler(ctx echo.Context) error {
	image, err := service.coreService.GetImage(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusOK, image)
}

func (service *APIService) thumbnailHandler(ctx echo.Context) error {
	width := thumbnail.DefaultWidth
	if raw := ctx.QueryParam("width"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(ctx, fmt.Sprintf("width must be a number, got %q", raw))
		}
		width = parsed
	}

	thumb, err := service.coreService.Thumbnail(ctx.Request().Context(), ctx.Param("id"), width)
	if err != nil {
		return errorJSON(ctx, err)
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return ctx.Blob(http.StatusOK, "image/png", thumb)
}

func (service *APIService) quizPairHandler(ctx echo.Context) error {
	ctx.Response().Header().Set("Cache-Control", "no-store")

	result, err := service.coreService.NextPair(ctx.Request().Context(), sessionID(ctx))
	if err != nil {
		return errorJSON(ctx, err)
	}
	if result.Reset {
		return ctx.JSON(http.StatusOK, map[string]bool{"reset": true})
	}

	return ctx.JSON(http.StatusOK, pairResponse{
		Images:         []*database.Image{result.Correct, result.Incorrect},
		CorrectImageID: result.Correct.ID,
		TotalPairs:     result.TotalPairs,
		RemainingPairs: result.RemainingPairs,
		CurrentPair:    result.CurrentPairIndex,
	})
}

func (service *APIService) newSessionHandler(ctx echo.Context) error {
	id, err := service.coreService.NewSession()
	if err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, map[string]string{"sessionId": id})
}

func (service *APIService) resetProgressHandler(ctx echo.Context) error {
	if err := service.coreService.ResetProgress(ctx.Request().Context(), sessionID(ctx)); err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (service *APIService) registerHandler(ctx echo.Context) error {
	var req credentialsRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return errorJSON(ctx, err)
	}

	user, err := service.coreService.Register(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, map[string]string{"message": "User created successfully", "id": user.ID})
}

func (service *APIService) loginHandler(ctx echo.Context) error {
	var req credentialsRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return errorJSON(ctx, err)
	}

	token, err := service.coreService.Login(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(service.coreService.Tokens().TTL().Seconds()),
	})
}

func (service *APIService) uploadHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		log.Debug().Err(err).Msg("uploadHandler: no image in request")
		return badRequest(ctx, "No image file uploaded")
	}

	maxBytes := service.maxUploadBytes()
	if file.Size > maxBytes {
		return badRequest(ctx, fmt.Sprintf("image is %d bytes, limit is %d", file.Size, maxBytes))
	}

	isCorrect := false
	if raw := strings.TrimSpace(ctx.FormValue("isCorrect")); raw != "" {
		isCorrect, err = strconv.ParseBool(raw)
		if err != nil {
			return badRequest(ctx, fmt.Sprintf("isCorrect must be a boolean, got %q", raw))
		}
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Str("filename", file.Filename).Msg("uploadHandler: failed to open uploaded file")
		return errorJSON(ctx, fmt.Errorf("%w: %w", core.ErrStorage, err))
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.Error().Err(cerr).Str("filename", file.Filename).Msg("uploadHandler: failed to close uploaded file reader")
		}
	}()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		log.Error().Err(err).Str("filename", file.Filename).Msg("uploadHandler: failed to read uploaded file")
		return errorJSON(ctx, fmt.Errorf("%w: %w", core.ErrStorage, err))
	}
	if int64(len(data)) > maxBytes {
		return badRequest(ctx, fmt.Sprintf("image is larger than %d bytes", maxBytes))
	}

	image, err := service.coreService.AddImage(ctx.Request().Context(), data, isCorrect)
	if err != nil {
		log.Info().Err(err).Str("filename", file.Filename).Str("user_id", auth.UserID(ctx)).Msg("uploadHandler: upload refused")
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, image)
}

func (service *APIService) updateImageHandler(ctx echo.Context) error {
	var req updateImageRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return errorJSON(ctx, err)
	}

	image, err := service.coreService.UpdateImage(ctx.Request().Context(), ctx.Param("id"), bool(*req.IsCorrect))
	if err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusOK, image)
}

func (service *APIService) deleteImageHandler(ctx echo.Context) error {
	if err := service.coreService.DeleteImage(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Image deleted successfully"})
}

func (service *APIService) reorderImagesHandler(ctx echo.Context) error {
	var req reorderRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return errorJSON(ctx, err)
	}

	images, err := service.coreService.ReorderImages(ctx.Request().Context(), req.IDs)
	if err != nil {
		return errorJSON(ctx, err)
	}
	return ctx.JSON(http.StatusOK, images)
}
