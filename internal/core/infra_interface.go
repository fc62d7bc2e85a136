package core

import (
	"context"
	"io"

	"github.com/markdave123-py/Scanlens/internal/models"
)

// DbClient defines all persistence operations your services will need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	// CreateUser must fail with ErrEmailTaken when the email already exists.
	CreateUser(ctx context.Context, user *models.User) (err error)
	// GetUserByEmail returns (nil, nil) when no user matches.
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)
	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient stores blobs in S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
}
