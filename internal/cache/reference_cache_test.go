package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	refdomain.Repository
	known map[string]refdomain.Match
	err   error
	calls int
}

func (r *countingRepo) Exists(_ context.Context, branch, store string) (refdomain.Match, error) {
	r.calls++
	if r.err != nil {
		return refdomain.Match{}, r.err
	}
	return r.known[branch+"/"+store], nil
}

func TestReferenceCacheKeepsMatches(t *testing.T) {
	repo := &countingRepo{known: map[string]refdomain.Match{"B1/S1": {Branch: true, Store: true}}}
	c := NewReferenceCache(repo, time.Minute)
	ctx := context.Background()

	for range 3 {
		match, err := c.Exists(ctx, "B1", "S1")
		require.NoError(t, err)
		assert.True(t, match.OK())
	}
	assert.Equal(t, 1, repo.calls)

	match, err := c.Exists(ctx, " B1 ", "S1")
	require.NoError(t, err)
	assert.True(t, match.OK())
	assert.Equal(t, 1, repo.calls)
}

func TestReferenceCacheSkipsMisses(t *testing.T) {
	repo := &countingRepo{known: map[string]refdomain.Match{"B1/S2": {Branch: true}}}
	c := NewReferenceCache(repo, time.Minute)
	ctx := context.Background()

	_, _ = c.Exists(ctx, "B1", "S2")
	repo.known["B1/S2"] = refdomain.Match{Branch: true, Store: true}
	match, err := c.Exists(ctx, "B1", "S2")
	require.NoError(t, err)
	assert.True(t, match.OK())
	assert.Equal(t, 2, repo.calls)

	repo.err = errors.New("db down")
	_, err = c.Exists(ctx, "B9", "S9")
	assert.Error(t, err)
}

func TestReferenceCacheDisabled(t *testing.T) {
	repo := &countingRepo{}
	assert.Same(t, refdomain.Repository(repo), NewReferenceCache(repo, 0))
}
