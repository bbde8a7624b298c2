package cache

import (
	"context"
	"time"

	"modaloja/backend/internal/domain"
)

// RegisterStatusCache holds the drawer status snapshot served to the POS
// front counter. Entries are short-lived and invalidated on every mutation
// that touches the open register.
type RegisterStatusCache interface {
	Get(ctx context.Context, key string) (*domain.RegisterStatusResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.RegisterStatusResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopRegisterStatusCache struct{}

func (NoopRegisterStatusCache) Get(_ context.Context, _ string) (*domain.RegisterStatusResponse, bool, error) {
	return nil, false, nil
}

func (NoopRegisterStatusCache) Set(_ context.Context, _ string, _ *domain.RegisterStatusResponse, _ time.Duration) error {
	return nil
}

func (NoopRegisterStatusCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
