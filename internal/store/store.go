package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/synthgen/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid run status transition")

// Store is the data access interface. All database operations go through here.
// Only metadata is stored: schema descriptions, API keys and run audits.
type Store interface {
	Ping(ctx context.Context) error

	UpsertDescription(ctx context.Context, d *models.SchemaDescription) error
	ListDescriptions(ctx context.Context, limit int) ([]models.SchemaDescription, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	CreateRun(ctx context.Context, run *models.GenerationRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.GenerationRun, error)
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...RunUpdateOption) error
}

type runUpdateParams struct {
	ErrorMessage *string
	RowsEmitted  *int
	CacheHit     *bool
}

type RunUpdateOption func(*runUpdateParams)

func WithErrorMessage(msg string) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithRowsEmitted(n int) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.RowsEmitted = &n
	}
}

func WithCacheHit(hit bool) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.CacheHit = &hit
	}
}
