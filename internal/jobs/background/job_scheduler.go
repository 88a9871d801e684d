package background

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"carshelf/internal/repositories"
	"carshelf/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	orphanSweepJob     = "orphaned-image-sweep"
	existenceBatchSize = 500
	sweepConcurrency   = 5
)

// SweepReport summarizes one pass of the orphaned image sweep.
type SweepReport struct {
	Folders int
	Orphans int
	Removed int
	Failed  int
}

// JobScheduler runs periodic maintenance jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	carRepo   repositories.CarRepository
	storage   services.StorageService
	logger    *zap.Logger
	interval  time.Duration
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates a scheduler with the image sweep registered at the
// given interval. A non-positive interval registers no jobs.
func NewJobScheduler(carRepo repositories.CarRepository, storage services.StorageService, interval time.Duration, logger *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		carRepo:   carRepo,
		storage:   storage,
		logger:    logger,
		interval:  interval,
		jobs:      make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("Starting background job scheduler", zap.Strings("jobs", js.JobNames()))
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// JobNames lists the registered jobs.
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (js *JobScheduler) registerJobs() error {
	if js.interval <= 0 {
		return nil
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(js.interval),
		gocron.NewTask(js.runSweep, context.Background()),
		gocron.WithName(orphanSweepJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", orphanSweepJob, err)
	}
	js.jobs[orphanSweepJob] = job
	return nil
}

func (js *JobScheduler) runSweep(ctx context.Context) {
	start := time.Now()
	report, err := js.SweepOrphanedImages(ctx)
	if err != nil {
		js.logger.Error("Orphaned image sweep failed", zap.Error(err))
		return
	}
	js.logger.Info("Orphaned image sweep finished",
		zap.Int("folders", report.Folders),
		zap.Int("orphans", report.Orphans),
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(start)),
	)
}

// SweepOrphanedImages removes photo folders whose car no longer exists.
// Such folders are left behind when a best-effort removal fails during a
// delete. Folders not named after a car id are ignored.
func (js *JobScheduler) SweepOrphanedImages(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	folders, err := js.storage.ListFolders(ctx)
	if err != nil {
		return report, fmt.Errorf("list folders: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(folders))
	for _, folder := range folders {
		id, err := uuid.Parse(folder)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	report.Folders = len(ids)

	var orphans []uuid.UUID
	for start := 0; start < len(ids); start += existenceBatchSize {
		end := start + existenceBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		existing, err := js.carRepo.ExistingIDs(ctx, batch)
		if err != nil {
			return report, fmt.Errorf("check car ids: %w", err)
		}
		for _, id := range batch {
			if !existing[id] {
				orphans = append(orphans, id)
			}
		}
	}
	report.Orphans = len(orphans)

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, sweepConcurrency)
	)
	for _, id := range orphans {
		wg.Add(1)
		go func(carID uuid.UUID) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			removed, failed := js.removeFolder(ctx, carID)

			mu.Lock()
			report.Removed += removed
			report.Failed += failed
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return report, nil
}

func (js *JobScheduler) removeFolder(ctx context.Context, carID uuid.UUID) (removed, failed int) {
	objects, err := js.storage.List(ctx, carID.String()+"/")
	if err != nil {
		js.logger.Warn("Failed to list orphaned folder", zap.String("car_id", carID.String()), zap.Error(err))
		return 0, 1
	}
	for _, object := range objects {
		if err := js.storage.RemoveObject(ctx, object); err != nil {
			js.logger.Warn("Failed to remove orphaned image", zap.String("object", object), zap.Error(err))
			failed++
			continue
		}
		removed++
	}
	return removed, failed
}
