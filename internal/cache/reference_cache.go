package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
)

const defaultReferenceEntries = 1024

// ReferenceCache keeps recent branch/store matches for the ingest hot path. Terminals
// push every row of a transaction, so the same pair is looked up many times a second.
//
// Only full matches are cached. A branch created after a rejected push is accepted on
// the next retry.
type ReferenceCache struct {
	refdomain.Repository
	matches *expirable.LRU[string, refdomain.Match]
}

// NewReferenceCache wraps next. A non-positive ttl returns next unchanged.
func NewReferenceCache(next refdomain.Repository, ttl time.Duration) refdomain.Repository {
	if ttl <= 0 {
		return next
	}
	return &ReferenceCache{
		Repository: next,
		matches:    expirable.NewLRU[string, refdomain.Match](defaultReferenceEntries, nil, ttl),
	}
}

func (c *ReferenceCache) Exists(ctx context.Context, branch, store string) (refdomain.Match, error) {
	key := referenceKey(branch, store)
	if match, ok := c.matches.Get(key); ok {
		return match, nil
	}

	match, err := c.Repository.Exists(ctx, branch, store)
	if err != nil {
		return match, err
	}
	if match.OK() {
		c.matches.Add(key, match)
	}
	return match, nil
}

func referenceKey(branch, store string) string {
	return strings.TrimSpace(branch) + "\x00" + strings.TrimSpace(store)
}
