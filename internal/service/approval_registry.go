package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
)

type approvalChainSource interface {
	GetApprovalChain(ctx context.Context, organization, approvalKey string) (*models.ApprovalChainConfig, error)
}

type approvalChainCache interface {
	GetApprovalChain(ctx context.Context, organization, approvalKey string) (*models.ApprovalChainConfig, error)
	SetApprovalChain(ctx context.Context, config *models.ApprovalChainConfig, ttl time.Duration) error
}

// ApprovalRegistry resolves per-organization approval chain configuration
// and answers stage authorization questions. It carries no mutable state;
// the configuration is fetched (through an optional cache) per request.
type ApprovalRegistry struct {
	source   approvalChainSource
	cache    approvalChainCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewApprovalRegistry constructs the registry. The cache may be nil.
func NewApprovalRegistry(source approvalChainSource, cache approvalChainCache, cacheTTL time.Duration, logger *zap.Logger) *ApprovalRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ApprovalRegistry{source: source, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Resolve returns the chain configuration for an approval key within an
// organization, or ErrNotFound. Cache failures fall through to the source.
func (r *ApprovalRegistry) Resolve(ctx context.Context, approvalKey, organization string) (*models.ApprovalChainConfig, error) {
	if r.cache != nil {
		cached, err := r.cache.GetApprovalChain(ctx, organization, approvalKey)
		if err != nil {
			r.logger.Warn("approval chain cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	config, err := r.source.GetApprovalChain(ctx, organization, approvalKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval chain not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load approval chain")
	}

	if r.cache != nil {
		if err := r.cache.SetApprovalChain(ctx, config, r.cacheTTL); err != nil {
			r.logger.Warn("approval chain cache write failed", zap.Error(err))
		}
	}
	return config, nil
}

// AuthorizeStage reports whether the actor holds exactly the department and
// level configured for the stage. No hierarchy or wildcard semantics.
func (r *ApprovalRegistry) AuthorizeStage(config *models.ApprovalChainConfig, stage int, actor *models.JWTClaims) bool {
	if config == nil || actor == nil {
		return false
	}
	var role *models.StageRole
	switch stage {
	case 1:
		role = &config.Stage1
	case 2:
		role = config.Stage2
	}
	if role == nil {
		return false
	}
	return actor.Department == role.Department && actor.Position == role.Level
}

// ensureSequential is the single ordering gate shared by both approval
// workflows: every prior stage must be approved and the current stage must
// still be open. It pre-checks what the repositories' state-keyed updates
// enforce race-free.
func ensureSequential(prior []bool, currentDecided bool) error {
	for _, approved := range prior {
		if !approved {
			return appErrors.ErrPreconditionFailed
		}
	}
	if currentDecided {
		return appErrors.ErrConflict
	}
	return nil
}
