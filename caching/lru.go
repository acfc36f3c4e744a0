package caching

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/goutils/metadata"
)

const (
	metadataMaxEntries = 2000
	metadataTTL        = 10 * time.Minute
	balanceMaxEntries  = 500
	balanceTTL         = time.Minute
)

// LRUCache holds short-lived per-session derivations so periodic refreshes
// do not re-fetch what has not changed.
type LRUCache struct {
	operatorMetadata *expirable.LRU[string, metadata.OperatorMetadata]
	nativeBalances   *expirable.LRU[string, string]
}

var _ MemCache = (*LRUCache)(nil)

func NewLRUCache() *LRUCache {
	cache := &LRUCache{
		operatorMetadata: expirable.NewLRU[string, metadata.OperatorMetadata](metadataMaxEntries, nil, metadataTTL),
		nativeBalances:   expirable.NewLRU[string, string](balanceMaxEntries, nil, balanceTTL),
	}

	if err := gi.Inject(cache); err != nil {
		log.WithError(err).Fatal("failed to inject lru cache")
	}

	return cache
}

func (l *LRUCache) GetOperatorMetadata(operatorID string) (metadata.OperatorMetadata, bool) {
	return l.operatorMetadata.Get(operatorID)
}

func (l *LRUCache) SetOperatorMetadata(operatorID string, meta metadata.OperatorMetadata) {
	l.operatorMetadata.Add(operatorID, meta)
}

func (l *LRUCache) GetNativeBalance(address string) (string, bool) {
	return l.nativeBalances.Get(address)
}

func (l *LRUCache) SetNativeBalance(address string, balance string) {
	l.nativeBalances.Add(address, balance)
}
