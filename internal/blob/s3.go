package blob

import (
	"context"

	infraS3 "foodwaste/internal/infra/blob/s3"
)

// S3Config re-exports the S3 adapter configuration.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}
