package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/ttms-api/internal/dto"
	"github.com/noah-isme/ttms-api/internal/models"
	"github.com/noah-isme/ttms-api/internal/timetable"
	"github.com/noah-isme/ttms-api/pkg/cache"
	appErrors "github.com/noah-isme/ttms-api/pkg/errors"
	"github.com/noah-isme/ttms-api/pkg/jobs"
)

// JobTypeGenerateAll is the queue job type of a generate-all batch.
const JobTypeGenerateAll = "timetable.generate_all"

type timetableSubjectReader interface {
	ListByCohort(ctx context.Context, cohort models.Cohort) ([]models.Subject, error)
	ListCohorts(ctx context.Context) ([]models.Cohort, error)
}

type timetableAssignmentReader interface {
	ListAssignmentsByCohort(ctx context.Context, cohort models.Cohort) ([]models.StaffAssignment, error)
}

type timetableResourceReader interface {
	ListPeriods(ctx context.Context) ([]models.Period, error)
	ListClassrooms(ctx context.Context) ([]models.Classroom, error)
}

type timetableWriter interface {
	ListOccupancy(ctx context.Context, exec sqlx.ExtContext) ([]models.TimetableEntry, error)
	ReplaceForCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort, entries []models.TimetableEntry) (int64, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// TimetableGeneratorConfig tunes generation runs.
type TimetableGeneratorConfig struct {
	SafetyMargin     int
	MaxPerSubjectDay int
	RelaxedDailyCap  int
	RoomFallbackID   string
	LockWait         time.Duration
	BatchTTL         time.Duration
}

// TimetableGeneratorService regenerates cohort timetables and persists them atomically.
type TimetableGeneratorService struct {
	subjects    timetableSubjectReader
	assignments timetableAssignmentReader
	resources   timetableResourceReader
	entries     timetableWriter
	tx          txProvider
	lock        cache.Locker
	cache       cacheInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         TimetableGeneratorConfig
	strategy    timetable.Strategy

	dispatcher jobDispatcher
	batches    *batchStore
}

// NewTimetableGeneratorService wires generator dependencies. A nil lock falls
// back to an in-process lock.
func NewTimetableGeneratorService(
	subjects timetableSubjectReader,
	assignments timetableAssignmentReader,
	resources timetableResourceReader,
	entries timetableWriter,
	tx txProvider,
	lock cache.Locker,
	invalidator cacheInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lock == nil {
		lock = cache.NewLocalLock()
	}
	if cfg.MaxPerSubjectDay <= 0 {
		cfg.MaxPerSubjectDay = timetable.DefaultMaxPerSubjectDay
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = timetable.DefaultSafetyMargin
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 30 * time.Second
	}
	if cfg.BatchTTL <= 0 {
		cfg.BatchTTL = time.Hour
	}
	return &TimetableGeneratorService{
		subjects:    subjects,
		assignments: assignments,
		resources:   resources,
		entries:     entries,
		tx:          tx,
		lock:        lock,
		cache:       invalidator,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		strategy: timetable.RoundRobin{
			SafetyMargin:    cfg.SafetyMargin,
			RelaxedDailyCap: cfg.RelaxedDailyCap,
		},
		batches: newBatchStore(cfg.BatchTTL),
	}
}

// UseDispatcher attaches the queue that runs generate-all batches.
func (s *TimetableGeneratorService) UseDispatcher(d jobDispatcher) {
	s.dispatcher = d
}

// Generate regenerates the timetable of one cohort and replaces its stored rows.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}

	start := time.Now()
	resp, err := s.generate(ctx, models.Cohort{Year: req.Year, CourseID: req.CourseID, Semester: req.Semester}, req.Seed)
	if err != nil {
		s.metrics.ObserveGeneration(appErrors.FromError(err).Code, "", 0, 0, time.Since(start))
		return nil, err
	}
	resp.DurationMillis = time.Since(start).Milliseconds()

	unmet := 0
	for _, sf := range resp.Shortfalls {
		unmet += sf.UnmetHours
	}
	s.metrics.ObserveGeneration(resp.Status, resp.Strategy, resp.PlacedCount, unmet, time.Since(start))
	return resp, nil
}

func (s *TimetableGeneratorService) generate(ctx context.Context, cohort models.Cohort, seed *int64) (*dto.GenerateTimetableResponse, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	release, err := s.lock.Acquire(lockCtx)
	cancel()
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) || errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Wrap(err, appErrors.ErrLocked.Code, appErrors.ErrLocked.Status, appErrors.ErrLocked.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to acquire generation lock")
	}
	defer release()

	input, subjectCodes, err := s.loadInput(ctx, cohort)
	if err != nil {
		return nil, err
	}

	rng, usedSeed := timetable.NewRand(seed)
	alloc, err := timetable.Run(input, s.strategy, rng)
	if err != nil {
		switch {
		case errors.Is(err, timetable.ErrNoPeriods):
			return nil, appErrors.Wrap(err, appErrors.ErrNoPeriods.Code, appErrors.ErrNoPeriods.Status, appErrors.ErrNoPeriods.Message)
		case errors.Is(err, timetable.ErrNoAssignments):
			return nil, appErrors.Wrap(err, appErrors.ErrNoAssignments.Code, appErrors.ErrNoAssignments.Status,
				fmt.Sprintf("no staff assigned to any subject of %s/%s semester %s", cohort.Year, cohort.CourseID, cohort.Semester))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable allocation failed")
	}

	rows := make([]models.TimetableEntry, 0, len(alloc.Entries))
	for _, e := range alloc.Entries {
		rows = append(rows, models.TimetableEntry{
			ID:          uuid.NewString(),
			Day:         string(e.Day),
			PeriodID:    e.PeriodID,
			PeriodNo:    e.PeriodNo,
			SubjectID:   e.SubjectID,
			StaffID:     e.StaffID,
			ClassroomID: e.RoomID,
			Year:        e.Year,
			CourseID:    e.CourseID,
			Semester:    e.Semester,
		})
	}

	replaced, err := s.persist(ctx, cohort, rows)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, gridCachePattern); err != nil {
			s.logger.Warn("failed to invalidate grid cache", zap.Error(err))
		}
	}

	resp := &dto.GenerateTimetableResponse{
		Year:          cohort.Year,
		CourseID:      cohort.CourseID,
		Semester:      cohort.Semester,
		Status:        dto.GenerationStatusComplete,
		PlacedCount:   alloc.PlacedCount(),
		ReplacedCount: replaced,
		Shortfalls:    make([]dto.ShortfallView, 0, len(alloc.Shortfalls)),
		Unassignable:  alloc.Unassignable,
		Iterations:    alloc.Iterations,
		RelaxedPlaced: alloc.Relaxed,
		Strategy:      alloc.Strategy,
		Seed:          usedSeed,
	}
	if resp.Unassignable == nil {
		resp.Unassignable = []string{}
	}
	if !alloc.Complete() {
		resp.Status = dto.GenerationStatusPartial
	}
	for _, sf := range alloc.Shortfalls {
		resp.Shortfalls = append(resp.Shortfalls, dto.ShortfallView{
			SubjectID:   sf.SubjectID,
			SubjectCode: subjectCodes[sf.SubjectID],
			UnmetHours:  sf.UnmetHours,
		})
	}

	s.logger.Info("timetable generated",
		zap.String("year", cohort.Year),
		zap.String("course_id", cohort.CourseID),
		zap.String("semester", cohort.Semester),
		zap.String("status", resp.Status),
		zap.Int("placed", resp.PlacedCount),
		zap.Int64("replaced", replaced),
		zap.Int("iterations", resp.Iterations),
		zap.Int64("seed", usedSeed),
	)
	if len(resp.Unassignable) > 0 {
		s.logger.Warn("subjects without staff skipped", zap.Strings("subject_ids", resp.Unassignable))
	}
	return resp, nil
}

func (s *TimetableGeneratorService) loadInput(ctx context.Context, cohort models.Cohort) (timetable.RunInput, map[string]string, error) {
	var input timetable.RunInput

	subjects, err := s.subjects.ListByCohort(ctx, cohort)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	assignments, err := s.assignments.ListAssignmentsByCohort(ctx, cohort)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff assignments")
	}
	periods, err := s.resources.ListPeriods(ctx)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	rooms, err := s.resources.ListClassrooms(ctx)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	occupied, err := s.entries.ListOccupancy(ctx, nil)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occupied slots")
	}

	codes := make(map[string]string, len(subjects))
	input = timetable.RunInput{
		Cohort:           timetable.Cohort{Year: cohort.Year, CourseID: cohort.CourseID, Semester: cohort.Semester},
		MaxPerSubjectDay: s.cfg.MaxPerSubjectDay,
		Grid:             timetable.Grid{Days: timetable.Weekdays},
	}
	for _, sub := range subjects {
		codes[sub.ID] = sub.Code
		input.Subjects = append(input.Subjects, timetable.Subject{
			ID:          sub.ID,
			Code:        sub.Code,
			Name:        sub.Name,
			Year:        sub.Year,
			CourseID:    sub.CourseID,
			Semester:    sub.Semester,
			WeeklyHours: sub.WeeklyHours,
		})
	}
	for _, a := range assignments {
		input.Assignments = append(input.Assignments, timetable.Assignment{StaffID: a.StaffID, SubjectID: a.SubjectID})
	}
	for _, p := range periods {
		input.Grid.Periods = append(input.Grid.Periods, timetable.Period{ID: p.ID, No: p.PeriodNo})
	}
	for _, r := range rooms {
		input.Grid.Rooms = append(input.Grid.Rooms, r.ID)
	}
	if len(input.Grid.Rooms) == 0 && s.cfg.RoomFallbackID != "" {
		input.Grid.Rooms = []string{s.cfg.RoomFallbackID}
	}
	for _, e := range occupied {
		day, ok := timetable.ParseDay(e.Day)
		if !ok {
			continue
		}
		input.Occupied = append(input.Occupied, timetable.Entry{
			ID:        e.ID,
			Day:       day,
			PeriodNo:  e.PeriodNo,
			PeriodID:  e.PeriodID,
			SubjectID: e.SubjectID,
			StaffID:   e.StaffID,
			RoomID:    e.ClassroomID,
			Year:      e.Year,
			CourseID:  e.CourseID,
			Semester:  e.Semester,
		})
	}
	return input, codes, nil
}

func (s *TimetableGeneratorService) persist(ctx context.Context, cohort models.Cohort, rows []models.TimetableEntry) (replaced int64, err error) {
	if s.tx == nil {
		replaced, err = s.entries.ReplaceForCohort(ctx, nil, cohort, rows)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, appErrors.ErrPersistence.Message)
		}
		return replaced, nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	replaced, err = s.entries.ReplaceForCohort(ctx, tx, cohort, rows)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, appErrors.ErrPersistence.Message)
	}
	if err = tx.Commit(); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to commit timetable")
	}
	return replaced, nil
}

// GenerateAll regenerates every cohort that has subjects, one after another.
// Per-cohort failures are recorded in the outcome instead of aborting the batch.
func (s *TimetableGeneratorService) GenerateAll(ctx context.Context) ([]dto.CohortOutcome, error) {
	cohorts, err := s.subjects.ListCohorts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cohorts")
	}

	outcomes := make([]dto.CohortOutcome, 0, len(cohorts))
	for _, cohort := range cohorts {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcome := dto.CohortOutcome{Year: cohort.Year, CourseID: cohort.CourseID, Semester: cohort.Semester}
		resp, err := s.Generate(ctx, dto.GenerateTimetableRequest{Year: cohort.Year, CourseID: cohort.CourseID, Semester: cohort.Semester})
		if err != nil {
			appErr := appErrors.FromError(err)
			outcome.ErrorCode = appErr.Code
			outcome.Error = appErr.Message
			s.metrics.ObserveBatchCohort("failed")
			s.logger.Warn("cohort generation failed",
				zap.String("year", cohort.Year),
				zap.String("course_id", cohort.CourseID),
				zap.String("semester", cohort.Semester),
				zap.Error(err),
			)
		} else {
			outcome.Result = resp
			s.metrics.ObserveBatchCohort(resp.Status)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// Enqueue schedules a generate-all batch on the background queue.
func (s *TimetableGeneratorService) Enqueue(ctx context.Context) (*dto.BatchStatusResponse, error) {
	if s.dispatcher == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "batch queue not configured")
	}
	batch := dto.BatchStatusResponse{
		ID:        uuid.NewString(),
		Status:    dto.BatchStatusQueued,
		Outcomes:  []dto.CohortOutcome{},
		CreatedAt: time.Now().UTC(),
	}
	s.batches.Save(batch)

	if err := s.dispatcher.Enqueue(jobs.Job{ID: batch.ID, Type: JobTypeGenerateAll}); err != nil {
		s.batches.Delete(batch.ID)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "batch queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue batch")
	}
	s.logger.Info("generate-all batch queued", zap.String("batch_id", batch.ID))
	return &batch, nil
}

// BatchStatus returns a batch tracked by Enqueue.
func (s *TimetableGeneratorService) BatchStatus(ctx context.Context, id string) (*dto.BatchStatusResponse, error) {
	batch, ok := s.batches.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	return &batch, nil
}

func (s *TimetableGeneratorService) runBatch(ctx context.Context, id string) error {
	batch, ok := s.batches.Get(id)
	if !ok {
		return fmt.Errorf("batch %s expired or unknown", id)
	}
	batch.Status = dto.BatchStatusRunning
	s.batches.Save(batch)

	outcomes, err := s.GenerateAll(ctx)
	now := time.Now().UTC()
	batch.Outcomes = outcomes
	batch.FinishedAt = &now
	batch.Status = dto.BatchStatusCompleted
	if err != nil {
		batch.Status = dto.BatchStatusFailed
	}
	s.batches.Save(batch)
	if err != nil {
		return err
	}
	s.logger.Info("generate-all batch finished", zap.String("batch_id", id), zap.Int("cohorts", len(outcomes)))
	return nil
}

// TimetableBatchWorker bridges queue jobs to the generator.
type TimetableBatchWorker struct {
	generator *TimetableGeneratorService
}

// NewTimetableBatchWorker constructs the worker.
func NewTimetableBatchWorker(generator *TimetableGeneratorService) *TimetableBatchWorker {
	return &TimetableBatchWorker{generator: generator}
}

// Handle processes a queue job.
func (w *TimetableBatchWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeGenerateAll {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	return w.generator.runBatch(ctx, job.ID)
}

type batchStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]dto.BatchStatusResponse
}

func newBatchStore(ttl time.Duration) *batchStore {
	return &batchStore{
		ttl:   ttl,
		items: make(map[string]dto.BatchStatusResponse),
	}
}

func (s *batchStore) Save(batch dto.BatchStatusResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[batch.ID] = batch
}

func (s *batchStore) Get(id string) (dto.BatchStatusResponse, bool) {
	s.mu.RLock()
	batch, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return dto.BatchStatusResponse{}, false
	}
	if time.Since(batch.CreatedAt) > s.ttl {
		s.Delete(id)
		return dto.BatchStatusResponse{}, false
	}
	return batch, true
}

func (s *batchStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
