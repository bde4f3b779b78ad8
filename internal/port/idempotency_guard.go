package port

import "context"

type IdempotencyGuard interface {
	// Claim marks key as used, returns false if it was already claimed
	Claim(ctx context.Context, key string) (bool, error)

	// Release frees a claimed key so a failed request can be retried
	Release(ctx context.Context, key string) error
}
