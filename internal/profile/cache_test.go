package profile

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows      map[uuid.UUID]*UserProfile
	getCalls  int
	upsertErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{rows: map[uuid.UUID]*UserProfile{}}
}

func (s *stubRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	s.getCalls++
	p, ok := s.rows[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (s *stubRepo) Upsert(ctx context.Context, p *UserProfile) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	cp := *p
	s.rows[p.UserID] = &cp
	return nil
}

func TestGetUserInfoReadsBackendOnce(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.rows[userID] = &UserProfile{UserID: userID, Name: "Alan", Age: 28, Goal: "Fat Loss"}
	cache := NewCache(repo)

	first, err := cache.GetUserInfo(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, "Alan", first.Name)

	second, err := cache.GetUserInfo(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, 1, repo.getCalls)
}

func TestGetUserInfoAbsent(t *testing.T) {
	cache := NewCache(newStubRepo())

	_, err := cache.GetUserInfo(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertReplacesCacheOnSuccess(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	cache := NewCache(repo)

	p := &UserProfile{UserID: userID, Name: "Alan", Age: 28, Weight: 70, Height: 175, Goal: "Muscle Gain"}
	require.NoError(t, cache.UpsertUserInfo(context.Background(), p))

	got, err := cache.GetUserInfo(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, "Muscle Gain", got.Goal)
	// served from cache, not the backend
	require.Equal(t, 0, repo.getCalls)
}

func TestUpsertFailureLeavesCacheUnchanged(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.rows[userID] = &UserProfile{UserID: userID, Name: "Alan", Goal: "Maintenance"}
	cache := NewCache(repo)

	warm, err := cache.GetUserInfo(context.Background(), userID)
	require.NoError(t, err)

	repo.upsertErr = errors.New("backend unavailable")
	err = cache.UpsertUserInfo(context.Background(), &UserProfile{UserID: userID, Name: "Changed"})
	require.Error(t, err)

	got, err := cache.GetUserInfo(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, warm, got)
}
