package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"carshelf/internal/common"
	"carshelf/internal/middleware"
	"carshelf/internal/models"
	"carshelf/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// CarHandlers handles HTTP requests for cars
type CarHandlers struct {
	carService   services.CarService
	maxImageSize int64
	logger       *zap.Logger
}

// NewCarHandlers creates a new car handlers instance
func NewCarHandlers(carService services.CarService, maxImageSize int64, logger *zap.Logger) *CarHandlers {
	return &CarHandlers{
		carService:   carService,
		maxImageSize: maxImageSize,
		logger:       logger,
	}
}

type createCarResponse struct {
	Success bool                      `json:"success"`
	Car     *models.Car               `json:"car"`
	Uploads services.SideEffectReport `json:"uploads"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// ListCars handles GET /cars
//
//	@Summary	List the caller's cars, newest first
//	@Tags		cars
//	@Param		search	query	string	false	"Match title, description or an exact tag"
//	@Success	200	{array}		models.Car
//	@Failure	401	{object}	ErrorResponse
//	@Router		/cars [get]
func (h *CarHandlers) ListCars(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := middleware.CurrentUser(ctx)
	if !ok {
		return common.NewAuthenticationError("Unauthorized")
	}

	search := common.SanitizeSearchQuery(c.QueryParam("search"))
	cars, err := h.carService.List(ctx, userID, search)
	if err != nil {
		return err
	}
	if cars == nil {
		cars = []*models.Car{}
	}
	return c.JSON(http.StatusOK, cars)
}

// CreateCar handles POST /cars
//
//	@Summary	Create a car with up to ten photos
//	@Tags		cars
//	@Accept		mpfd
//	@Param		title		formData	string	true	"Title"
//	@Param		description	formData	string	false	"Description"
//	@Param		tags		formData	string	false	"Comma separated tags"
//	@Param		image0		formData	file	false	"First photo, also the cover"
//	@Success	200	{object}	createCarResponse
//	@Failure	400	{object}	ErrorResponse
//	@Router		/cars [post]
func (h *CarHandlers) CreateCar(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := middleware.CurrentUser(ctx)
	if !ok {
		return common.NewAuthenticationError("Unauthorized")
	}

	input := carInputFromForm(c)
	if strings.TrimSpace(input.Title) == "" {
		return common.NewValidationError("Title is required")
	}

	files, err := h.imageFiles(c)
	if err != nil {
		return err
	}

	result, err := h.carService.Create(ctx, userID, input, files)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, createCarResponse{
		Success: true,
		Car:     result.Car,
		Uploads: result.Uploads,
	})
}

// GetCar handles GET /cars/:id
//
//	@Summary	Get one car
//	@Tags		cars
//	@Param		id	path	string	true	"Car ID"
//	@Success	200	{object}	models.Car
//	@Failure	403	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/cars/{id} [get]
func (h *CarHandlers) GetCar(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := middleware.CurrentUser(ctx)
	if !ok {
		return common.NewAuthenticationError("Unauthorized")
	}

	carID, err := parseCarID(c.Param("id"))
	if err != nil {
		return err
	}

	car, err := h.carService.Get(ctx, userID, carID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, car)
}

// UpdateCar handles PUT /cars/:id
//
//	@Summary	Replace a car's details and edit its photos
//	@Tags		cars
//	@Accept		mpfd
//	@Param		id				path		string	true	"Car ID"
//	@Param		title			formData	string	true	"Title"
//	@Param		imagesToDelete	formData	string	false	"Comma separated photo URLs to remove"
//	@Success	200	{object}	models.Car
//	@Failure	400	{object}	ErrorResponse
//	@Failure	403	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/cars/{id} [put]
func (h *CarHandlers) UpdateCar(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := middleware.CurrentUser(ctx)
	if !ok {
		return common.NewAuthenticationError("Unauthorized")
	}

	carID, err := parseCarID(c.Param("id"))
	if err != nil {
		return err
	}

	files, err := h.imageFiles(c)
	if err != nil {
		return err
	}

	input := carInputFromForm(c)
	imagesToDelete := common.SplitCSV(c.FormValue("imagesToDelete"))

	result, err := h.carService.Update(ctx, userID, carID, input, imagesToDelete, files)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result.Car)
}

// DeleteCar handles DELETE /cars/:id
//
//	@Summary	Delete a car and its photos
//	@Tags		cars
//	@Param		id	path	string	true	"Car ID"
//	@Success	200	{object}	successResponse
//	@Failure	403	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/cars/{id} [delete]
func (h *CarHandlers) DeleteCar(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := middleware.CurrentUser(ctx)
	if !ok {
		return common.NewAuthenticationError("Unauthorized")
	}

	carID, err := parseCarID(c.Param("id"))
	if err != nil {
		return err
	}

	if _, err := h.carService.Delete(ctx, userID, carID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func carInputFromForm(c echo.Context) models.CarInput {
	return models.CarInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Tags:        c.FormValue("tags"),
	}
}

// parseCarID treats a malformed id like an unknown one.
func parseCarID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, common.NewNotFoundError("Car not found")
	}
	return id, nil
}

// imageFiles collects the image0..image9 parts of a multipart form in slot
// order. Empty slots are skipped. Oversize or non-image parts are passed on
// with Rejected set so they count as failed uploads.
func (h *CarHandlers) imageFiles(c echo.Context) ([]services.ImageFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, common.NewValidationError("Invalid form data")
	}

	var files []services.ImageFile
	for i := 0; i < models.MaxCarImages; i++ {
		field := fmt.Sprintf("image%d", i)
		headers := form.File[field]
		if len(headers) == 0 || headers[0].Size == 0 {
			continue
		}
		header := headers[0]
		file := services.ImageFile{
			Name: header.Filename,
			Size: header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		}

		if header.Size > h.maxImageSize {
			file.Rejected = fmt.Errorf("%s exceeds the maximum size of %d bytes", field, h.maxImageSize)
		} else if contentType, err := detectContentType(header); err != nil {
			file.Rejected = fmt.Errorf("%s could not be read: %w", field, err)
		} else if !allowedImageTypes[contentType] {
			file.Rejected = fmt.Errorf("%s is %s, not a JPEG, PNG, GIF or WebP image", field, contentType)
		} else {
			file.ContentType = contentType
		}

		if file.Rejected != nil {
			h.logger.Warn("Skipping uploaded image", zap.String("field", field), zap.Error(file.Rejected))
		}
		files = append(files, file)
	}
	return files, nil
}

func detectContentType(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(buffer[:n]), nil
}
