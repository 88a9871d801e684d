package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"carshelf/internal/caching"
	"carshelf/internal/common"
	"carshelf/internal/models"
	"carshelf/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageFile is one uploaded photo waiting to be stored. A file with Rejected
// set still takes its slot but is never uploaded and counts as a failure.
type ImageFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
	Rejected    error
}

// SideEffectReport counts best-effort storage operations. A failed side
// effect never fails the car operation itself.
type SideEffectReport struct {
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
}

// Succeeded is the number of attempts that did not fail.
func (r SideEffectReport) Succeeded() int {
	return r.Attempted - r.Failed
}

// CarMutationResult is the outcome of a create or update.
type CarMutationResult struct {
	Car      *models.Car
	Uploads  SideEffectReport
	Removals SideEffectReport
}

// DeleteResult is the outcome of a delete.
type DeleteResult struct {
	Removals SideEffectReport
}

type CarService interface {
	Create(ctx context.Context, ownerID uuid.UUID, input models.CarInput, files []ImageFile) (*CarMutationResult, error)
	Get(ctx context.Context, ownerID, carID uuid.UUID) (*models.Car, error)
	List(ctx context.Context, ownerID uuid.UUID, search string) ([]*models.Car, error)
	Update(ctx context.Context, ownerID, carID uuid.UUID, input models.CarInput, imagesToDelete []string, files []ImageFile) (*CarMutationResult, error)
	Delete(ctx context.Context, ownerID, carID uuid.UUID) (*DeleteResult, error)
}

type carService struct {
	carRepo  repositories.CarRepository
	storage  StorageService
	cache    caching.CacheService
	cacheTTL time.Duration
	logger   *zap.Logger

	now   func() time.Time
	newID func() uuid.UUID
}

func NewCarService(carRepo repositories.CarRepository, storage StorageService, cache caching.CacheService, cacheTTL time.Duration, logger *zap.Logger) CarService {
	return &carService{
		carRepo:  carRepo,
		storage:  storage,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.New,
	}
}

func (s *carService) Create(ctx context.Context, ownerID uuid.UUID, input models.CarInput, files []ImageFile) (*CarMutationResult, error) {
	if ownerID == uuid.Nil {
		return nil, common.NewAuthenticationError("Unauthorized")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, common.NewValidationError("Title is required")
	}

	// Mutations run to completion even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	car := &models.Car{
		ID:          s.newID(),
		Title:       title,
		Description: optionalText(input.Description),
		Tags:        models.SplitTagsField(input.Tags),
		UserID:      ownerID,
	}
	if err := s.carRepo.Create(ctx, car); err != nil {
		s.logger.Error("Failed to insert car", zap.String("owner_id", ownerID.String()), zap.Error(err))
		return nil, common.NewUpstreamError("Failed to create car", err)
	}

	files = s.capFiles(car.ID, files, models.MaxCarImages)
	urls, uploads := s.uploadImages(ctx, car.ID, files)

	car.Images = urls
	car.CoverImage = nil
	car.Reconcile()

	if len(urls) > 0 {
		if err := s.carRepo.UpdateImages(ctx, car); err != nil {
			s.logger.Error("Failed to save car images", zap.String("car_id", car.ID.String()), zap.Error(err))
			s.discardCreated(ctx, car.ID, urls)
			return nil, common.NewUpstreamError("Failed to save car images", err)
		}
	}

	s.logger.Info("Car created",
		zap.String("car_id", car.ID.String()),
		zap.Int("images", len(car.Images)),
		zap.Int("upload_failures", uploads.Failed),
	)

	return &CarMutationResult{Car: car, Uploads: uploads}, nil
}

func (s *carService) Get(ctx context.Context, ownerID, carID uuid.UUID) (*models.Car, error) {
	return s.fetchOwned(ctx, ownerID, carID, true)
}

func (s *carService) List(ctx context.Context, ownerID uuid.UUID, search string) ([]*models.Car, error) {
	if ownerID == uuid.Nil {
		return nil, common.NewAuthenticationError("Unauthorized")
	}
	cars, err := s.carRepo.ListByOwner(ctx, ownerID, search)
	if err != nil {
		s.logger.Error("Failed to list cars", zap.String("owner_id", ownerID.String()), zap.Error(err))
		return nil, common.NewUpstreamError("Failed to fetch cars", err)
	}
	return cars, nil
}

func (s *carService) Update(ctx context.Context, ownerID, carID uuid.UUID, input models.CarInput, imagesToDelete []string, files []ImageFile) (*CarMutationResult, error) {
	car, err := s.fetchOwned(ctx, ownerID, carID, false)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, common.NewValidationError("Title is required")
	}

	ctx = context.WithoutCancel(ctx)

	survivors, removed := partitionImages(car.Images, imagesToDelete)

	files = s.capFiles(carID, files, models.MaxCarImages-len(survivors))
	urls, uploads := s.uploadImages(ctx, carID, files)

	car.Title = title
	car.Description = optionalText(input.Description)
	car.Tags = models.SplitTagsField(input.Tags)
	car.Images, car.CoverImage, car.CarImages = models.ReconcileImages(append(survivors, urls...), nil)

	// Stored objects are only removed once the row no longer references them.
	if err := s.carRepo.Update(ctx, car); err != nil {
		s.removeImages(ctx, carID, urls)
		return nil, s.storeError("Failed to update car", carID, err)
	}

	removals := s.removeImages(ctx, carID, removed)
	s.invalidate(ctx, carID)

	s.logger.Info("Car updated",
		zap.String("car_id", carID.String()),
		zap.Int("images", len(car.Images)),
		zap.Int("removed", len(removed)),
		zap.Int("upload_failures", uploads.Failed),
		zap.Int("removal_failures", removals.Failed),
	)

	return &CarMutationResult{Car: car, Uploads: uploads, Removals: removals}, nil
}

func (s *carService) Delete(ctx context.Context, ownerID, carID uuid.UUID) (*DeleteResult, error) {
	if _, err := s.fetchOwned(ctx, ownerID, carID, false); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	var removals SideEffectReport
	objects, err := s.storage.List(ctx, carID.String()+"/")
	if err != nil {
		s.logger.Warn("Failed to list car images for deletion", zap.String("car_id", carID.String()), zap.Error(err))
		removals.Attempted++
		removals.Failed++
	}
	for _, object := range objects {
		removals.Attempted++
		if err := s.storage.RemoveObject(ctx, object); err != nil {
			removals.Failed++
			s.logger.Warn("Failed to delete car image", zap.String("object", object), zap.Error(err))
		}
	}

	if err := s.carRepo.Delete(ctx, carID); err != nil {
		return nil, s.storeError("Failed to delete car", carID, err)
	}

	s.invalidate(ctx, carID)

	s.logger.Info("Car deleted",
		zap.String("car_id", carID.String()),
		zap.Int("objects", removals.Attempted),
		zap.Int("removal_failures", removals.Failed),
	)

	return &DeleteResult{Removals: removals}, nil
}

// fetchOwned loads a car and checks it belongs to ownerID. Reads may be
// served from cache; mutations always read the row.
func (s *carService) fetchOwned(ctx context.Context, ownerID, carID uuid.UUID, useCache bool) (*models.Car, error) {
	if ownerID == uuid.Nil {
		return nil, common.NewAuthenticationError("Unauthorized")
	}

	var car *models.Car
	if useCache {
		cached, err := s.cache.GetCar(ctx, carID)
		if err != nil {
			s.logger.Warn("Cache read failed", zap.String("car_id", carID.String()), zap.Error(err))
		}
		car = cached
	}

	if car == nil {
		fetched, err := s.carRepo.GetByID(ctx, carID)
		if err != nil {
			return nil, s.storeError("Failed to fetch car", carID, err)
		}
		car = fetched
		if useCache {
			if cacheErr := s.cache.SetCar(ctx, car, s.cacheTTL); cacheErr != nil {
				s.logger.Warn("Failed to cache car", zap.String("car_id", carID.String()), zap.Error(cacheErr))
			}
		}
	}

	if !car.IsOwnedBy(ownerID) {
		return nil, common.NewAuthorizationError("Forbidden")
	}
	return car, nil
}

func (s *carService) storeError(message string, carID uuid.UUID, err error) error {
	if errors.Is(err, repositories.ErrCarNotFound) {
		return common.NewNotFoundError("Car not found")
	}
	s.logger.Error(message, zap.String("car_id", carID.String()), zap.Error(err))
	return common.NewUpstreamError(message, err)
}

func (s *carService) invalidate(ctx context.Context, carID uuid.UUID) {
	if err := s.cache.DeleteCar(ctx, carID); err != nil {
		s.logger.Warn("Failed to invalidate cached car", zap.String("car_id", carID.String()), zap.Error(err))
	}
}

func (s *carService) capFiles(carID uuid.UUID, files []ImageFile, limit int) []ImageFile {
	if limit < 0 {
		limit = 0
	}
	if len(files) <= limit {
		return files
	}
	s.logger.Warn("Dropping images over the per-car limit",
		zap.String("car_id", carID.String()),
		zap.Int("submitted", len(files)),
		zap.Int("accepted", limit),
	)
	return files[:limit]
}

// uploadImages stores files concurrently. The returned URLs keep the order of
// files; failed uploads are left out and counted.
func (s *carService) uploadImages(ctx context.Context, carID uuid.UUID, files []ImageFile) ([]string, SideEffectReport) {
	report := SideEffectReport{Attempted: len(files)}
	if len(files) == 0 {
		return []string{}, report
	}

	stamp := s.now().UnixMilli()
	results := make([]string, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(index int, file ImageFile) {
			defer wg.Done()
			objectName := fmt.Sprintf("%s/%d-%d.%s", carID.String(), stamp, index, fileExtension(file.Name))
			url, err := s.uploadImage(ctx, objectName, file)
			if err != nil {
				s.logger.Warn("Image upload failed",
					zap.String("car_id", carID.String()),
					zap.Int("index", index),
					zap.String("object", objectName),
					zap.Error(err),
				)
				return
			}
			results[index] = url
		}(i, file)
	}
	wg.Wait()

	urls := make([]string, 0, len(results))
	for _, url := range results {
		if url == "" {
			report.Failed++
			continue
		}
		urls = append(urls, url)
	}
	return urls, report
}

func (s *carService) uploadImage(ctx context.Context, objectName string, file ImageFile) (string, error) {
	if file.Rejected != nil {
		return "", file.Rejected
	}
	if file.Open == nil {
		return "", fmt.Errorf("image %q has no content", file.Name)
	}
	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer reader.Close()

	return s.storage.Upload(ctx, objectName, reader, file.Size, file.ContentType)
}

// discardCreated undoes a create whose photo list could not be saved: the
// uploaded objects and the bare row are removed, both best-effort.
func (s *carService) discardCreated(ctx context.Context, carID uuid.UUID, urls []string) {
	s.removeImages(ctx, carID, urls)
	if err := s.carRepo.Delete(ctx, carID); err != nil {
		s.logger.Warn("Failed to discard partially created car", zap.String("car_id", carID.String()), zap.Error(err))
	}
}

// removeImages deletes the stored objects behind urls. The object path is
// rebuilt from the car id and the last URL segment.
func (s *carService) removeImages(ctx context.Context, carID uuid.UUID, urls []string) SideEffectReport {
	report := SideEffectReport{Attempted: len(urls)}
	for _, url := range urls {
		objectName := carID.String() + "/" + path.Base(url)
		if err := s.storage.RemoveObject(ctx, objectName); err != nil {
			report.Failed++
			s.logger.Warn("Failed to delete image from storage", zap.String("object", objectName), zap.Error(err))
		}
	}
	return report
}

// partitionImages splits images into those kept and those named in
// toDelete. Matching is by exact URL.
func partitionImages(images, toDelete []string) (survivors, removed []string) {
	doomed := make(map[string]bool, len(toDelete))
	for _, url := range toDelete {
		doomed[url] = true
	}
	survivors = []string{}
	for _, url := range images {
		if doomed[url] {
			removed = append(removed, url)
			continue
		}
		survivors = append(survivors, url)
	}
	return survivors, removed
}

func fileExtension(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}

func optionalText(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
