package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
)

type chainSourceStub struct {
	config *models.ApprovalChainConfig
	err    error
	calls  int
}

func (s *chainSourceStub) GetApprovalChain(ctx context.Context, organization, approvalKey string) (*models.ApprovalChainConfig, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.config, nil
}

type chainCacheStub struct {
	cached   *models.ApprovalChainConfig
	getErr   error
	setErr   error
	setCalls int
}

func (s *chainCacheStub) GetApprovalChain(ctx context.Context, organization, approvalKey string) (*models.ApprovalChainConfig, error) {
	return s.cached, s.getErr
}

func (s *chainCacheStub) SetApprovalChain(ctx context.Context, config *models.ApprovalChainConfig, ttl time.Duration) error {
	s.setCalls++
	return s.setErr
}

func sampleChain() *models.ApprovalChainConfig {
	return &models.ApprovalChainConfig{
		OrganizationName: "petra",
		ApprovalKey:      models.ApprovalKeyUpdateDepartment,
		ApprovalName:     "Update Department",
		Stage1:           models.StageRole{Department: "Engineering", Level: "Lead"},
		Stage2:           &models.StageRole{Department: "Operations", Level: "Head"},
	}
}

func TestApprovalRegistryResolveCacheHitSkipsSource(t *testing.T) {
	source := &chainSourceStub{config: sampleChain()}
	cache := &chainCacheStub{cached: sampleChain()}
	registry := NewApprovalRegistry(source, cache, time.Minute, nil)

	config, err := registry.Resolve(context.Background(), models.ApprovalKeyUpdateDepartment, "petra")
	require.NoError(t, err)
	assert.Equal(t, "Update Department", config.ApprovalName)
	assert.Zero(t, source.calls)
}

func TestApprovalRegistryResolveMissFillsCache(t *testing.T) {
	source := &chainSourceStub{config: sampleChain()}
	cache := &chainCacheStub{}
	registry := NewApprovalRegistry(source, cache, time.Minute, nil)

	config, err := registry.Resolve(context.Background(), models.ApprovalKeyUpdateDepartment, "petra")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, cache.setCalls)
	assert.NotNil(t, config.Stage2)
}

func TestApprovalRegistryResolveCacheFailureFallsThrough(t *testing.T) {
	source := &chainSourceStub{config: sampleChain()}
	cache := &chainCacheStub{getErr: assert.AnError}
	registry := NewApprovalRegistry(source, cache, time.Minute, nil)

	_, err := registry.Resolve(context.Background(), models.ApprovalKeyUpdateDepartment, "petra")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}

func TestApprovalRegistryResolveUnknownKey(t *testing.T) {
	source := &chainSourceStub{err: sql.ErrNoRows}
	registry := NewApprovalRegistry(source, nil, time.Minute, nil)

	_, err := registry.Resolve(context.Background(), "UNKNOWN", "petra")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAuthorizeStageExactMatch(t *testing.T) {
	registry := NewApprovalRegistry(&chainSourceStub{}, nil, time.Minute, nil)
	config := sampleChain()

	lead := &models.JWTClaims{Department: "Engineering", Position: "Lead"}
	assert.True(t, registry.AuthorizeStage(config, 1, lead))
	assert.False(t, registry.AuthorizeStage(config, 2, lead))

	// same department, different level is not good enough
	engineer := &models.JWTClaims{Department: "Engineering", Position: "Engineer"}
	assert.False(t, registry.AuthorizeStage(config, 1, engineer))

	head := &models.JWTClaims{Department: "Operations", Position: "Head"}
	assert.True(t, registry.AuthorizeStage(config, 2, head))

	config.Stage2 = nil
	assert.False(t, registry.AuthorizeStage(config, 2, head))
}

func TestEnsureSequential(t *testing.T) {
	assert.NoError(t, ensureSequential(nil, false))
	assert.NoError(t, ensureSequential([]bool{true, true}, false))

	err := ensureSequential([]bool{false}, false)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	err = ensureSequential([]bool{true}, true)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// an unmet precondition is reported before the duplicate decision
	err = ensureSequential([]bool{false}, true)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
