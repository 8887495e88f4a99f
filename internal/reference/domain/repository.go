package domain

import "context"

type Repository interface {
	// Exists matches branch and store by code or by display name.
	Exists(ctx context.Context, branch, store string) (Match, error)
	EnsureBranchStore(ctx context.Context, branch, store string) error
	ListBranches(ctx context.Context) ([]Branch, error)
	ListStores(ctx context.Context, branchCode string) ([]Store, error)
}
