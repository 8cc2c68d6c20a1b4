// Package tracker implements the application record operations. Every call
// takes the owner explicitly; there is no ambient user scope.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/transfer"
	"github.com/jonathan/application-tracker/internal/types"
)

var (
	// ErrNotFound covers both missing records and records owned by someone else.
	ErrNotFound = types.ErrNotFound
	// ErrStoreUnavailable is a retryable backend failure.
	ErrStoreUnavailable = types.ErrStoreUnavailable
)

// DefaultStoreTimeout bounds each store call when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// Repository is the persistence contract for applications. Implementations
// must scope every read and write to owner and report ErrNotFound for records
// outside it.
type Repository interface {
	CreateApplications(ctx context.Context, apps []types.Application) error
	GetApplication(ctx context.Context, owner, id uuid.UUID) (*types.Application, error)
	// MutateApplication loads the record, runs fn and persists the result
	// atomically. Nothing is written if fn returns an error.
	MutateApplication(ctx context.Context, owner, id uuid.UUID, fn func(*types.Application) error) (*types.Application, error)
	DeleteApplication(ctx context.Context, owner, id uuid.UUID) error
	ListApplications(ctx context.Context, owner uuid.UUID, c types.ListCriteria) ([]types.Application, int, error)
	ListDueFollowUps(ctx context.Context, owner uuid.UUID, asOf time.Time) ([]types.Application, error)
	ListAllApplications(ctx context.Context, owner uuid.UUID) ([]types.Application, error)
}

// Options configures a Service.
type Options struct {
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *Metrics
	Now          func() time.Time
	NewID        func() uuid.UUID
}

// Service validates input and drives a Repository.
type Service struct {
	repo    Repository
	timeout time.Duration
	log     *zap.Logger
	metrics *Metrics
	clock   func() time.Time
	newID   func() uuid.UUID
}

// NewService creates a Service. Zero-valued options fall back to defaults.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:    repo,
		timeout: opts.StoreTimeout,
		log:     opts.Logger,
		metrics: opts.Metrics,
		clock:   opts.Now,
		newID:   opts.NewID,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultStoreTimeout
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	return s
}

// now is truncated to microseconds so values survive a Postgres round trip unchanged.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// storeErr maps repository failures onto the service taxonomy.
func (s *Service) storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *types.ValidationError
	switch {
	case errors.Is(err, types.ErrNotFound), errors.As(err, &ve):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, types.ErrStoreUnavailable):
		s.log.Warn("store unavailable", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Create validates d and stores a new record owned by owner.
func (s *Service) Create(ctx context.Context, owner uuid.UUID, d types.Draft) (*types.Application, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	app := types.NewApplication(s.newID(), owner, d, s.now())

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.repo.CreateApplications(ctx, []types.Application{app}); err != nil {
		return nil, s.storeErr("create application", err)
	}
	s.metrics.created(1)
	return &app, nil
}

// Get returns one of owner's records.
func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*types.Application, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	app, err := s.repo.GetApplication(ctx, owner, id)
	if err != nil {
		return nil, s.storeErr("get application", err)
	}
	return app, nil
}

// Update merges the fields present in p. A status change appends one history entry.
func (s *Service) Update(ctx context.Context, owner, id uuid.UUID, p types.Patch) (*types.Application, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	var changedTo types.Status
	app, err := s.repo.MutateApplication(ctx, owner, id, func(a *types.Application) error {
		changedTo = ""
		if a.Apply(p, s.now()) {
			changedTo = a.Status
		}
		return nil
	})
	if err != nil {
		return nil, s.storeErr("update application", err)
	}
	if changedTo != "" {
		s.metrics.statusChanged(changedTo)
	}
	return app, nil
}

// Delete removes one of owner's records. Deleting twice yields ErrNotFound.
func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.storeErr("delete application", s.repo.DeleteApplication(ctx, owner, id))
}

// AddInteraction appends an interaction to one of owner's records.
func (s *Service) AddInteraction(ctx context.Context, owner, id uuid.UUID, d types.InteractionDraft) (*types.Application, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	app, err := s.repo.MutateApplication(ctx, owner, id, func(a *types.Application) error {
		a.AddInteraction(s.newID(), d, s.now())
		return nil
	})
	if err != nil {
		return nil, s.storeErr("add interaction", err)
	}
	return app, nil
}

// List returns one page of owner's records matching c.
func (s *Service) List(ctx context.Context, owner uuid.UUID, c types.ListCriteria) (types.Page, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	items, total, err := s.repo.ListApplications(ctx, owner, c)
	if err != nil {
		return types.Page{}, s.storeErr("list applications", err)
	}
	return types.NewPage(items, total, c), nil
}

// DueFollowUps returns owner's actionable records whose follow-up date is at
// or before asOf. A zero asOf means now.
func (s *Service) DueFollowUps(ctx context.Context, owner uuid.UUID, asOf time.Time) ([]types.Application, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	apps, err := s.repo.ListDueFollowUps(ctx, owner, asOf)
	if err != nil {
		return nil, s.storeErr("list follow-ups", err)
	}
	if apps == nil {
		apps = []types.Application{}
	}
	return apps, nil
}

// Export writes every record owned by owner to w as CSV.
func (s *Service) Export(ctx context.Context, owner uuid.UUID, w io.Writer) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	apps, err := s.repo.ListAllApplications(ctx, owner)
	if err != nil {
		return s.storeErr("export applications", err)
	}
	if err := transfer.Encode(w, apps); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// FailedRow is an import row that was not persisted.
type FailedRow struct {
	Line   int                `json:"line"`
	Errors []types.FieldError `json:"errors"`
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	Created []types.Application `json:"created"`
	Failed  []FailedRow         `json:"failed"`
}

// Import parses a CSV document and stores every valid row in one batch.
// Invalid rows are reported and skipped; if the batch write fails nothing is
// created.
func (s *Service) Import(ctx context.Context, owner uuid.UUID, r io.Reader) (*ImportResult, error) {
	rows, err := transfer.Decode(r)
	if errors.Is(err, transfer.ErrEmptyDocument) {
		return nil, types.NewValidationError([]types.FieldError{{Field: "file", Reason: "is empty"}})
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &ImportResult{Created: []types.Application{}, Failed: []FailedRow{}}
	for _, row := range rows {
		if !row.OK() {
			result.Failed = append(result.Failed, FailedRow{Line: row.Line, Errors: row.Problems})
			continue
		}
		result.Created = append(result.Created, types.NewApplication(s.newID(), owner, row.Draft, now))
	}

	if len(result.Created) > 0 {
		ctx, cancel := s.storeCtx(ctx)
		defer cancel()
		if err := s.repo.CreateApplications(ctx, result.Created); err != nil {
			return nil, s.storeErr("import applications", err)
		}
	}

	s.metrics.imported(len(result.Created), len(result.Failed))
	s.log.Info("import finished",
		zap.String("owner", owner.String()),
		zap.Int("created", len(result.Created)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}
