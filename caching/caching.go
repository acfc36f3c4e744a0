package caching

import (
	"context"
	"errors"

	"operator-console/goutils/metadata"
)

// DbCache is responsible for data persistence in db stores like redis.
// it backs the locally persisted settings (rotating API keys) and small
// cross-restart conveniences.
type DbCache interface {
	GetGraphAPIKey(ctx context.Context) (string, error)
	StoreGraphAPIKey(ctx context.Context, key string) error
	ClearGraphAPIKey(ctx context.Context) error
	GetLastViewedOperator(ctx context.Context) (string, error)
	StoreLastViewedOperator(ctx context.Context, operatorID string) error
}

// MemCache is an in-process cache for per-session derived data.
type MemCache interface {
	GetOperatorMetadata(operatorID string) (metadata.OperatorMetadata, bool)
	SetOperatorMetadata(operatorID string, meta metadata.OperatorMetadata)
	GetNativeBalance(address string) (string, bool)
	SetNativeBalance(address string, balance string)
}

var ErrNotFound = errors.New("key not found in cache")
