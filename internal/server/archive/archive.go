// Package archive writes a JSON snapshot of an account and its tasks to
// object storage before the account is deleted.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// Archiver stores a deleted account. Returning an error aborts the delete.
type Archiver interface {
	Archive(ctx context.Context, user *models.User, tasks []*models.Task) error
}

// Noop discards snapshots. Used when no bucket is configured.
type Noop struct{}

func (Noop) Archive(context.Context, *models.User, []*models.Task) error { return nil }

// Snapshot is the stored document.
type Snapshot struct {
	User      models.UserView   `json:"user"`
	Tasks     []models.TaskView `json:"tasks"`
	DeletedAt time.Time         `json:"deletedAt"`
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Seams for tests.
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type S3Archiver struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// New returns an S3Archiver when cfg names a bucket and Noop otherwise.
func New(ctx context.Context, cfg *config.Config) (Archiver, error) {
	if !cfg.ArchiveEnabled() {
		return Noop{}, nil
	}
	return NewS3Archiver(ctx, cfg)
}

// NewS3Archiver builds an S3 client from cfg. Static credentials are used
// when S3RootUser is set (MinIO); otherwise the default AWS chain applies.
func NewS3Archiver(ctx context.Context, cfg *config.Config) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3RootUser != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3RootUser, cfg.S3RootPassword, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ArchiverWithClient(client, cfg.S3Bucket), nil
}

func NewS3ArchiverWithClient(client objectPutter, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, now: time.Now}
}

// Key is the object key of a snapshot taken at t.
func Key(userID string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("deleted-users/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), userID)
}

func (a *S3Archiver) Archive(ctx context.Context, user *models.User, tasks []*models.Task) error {
	now := a.now()
	snap := Snapshot{User: user.View(), Tasks: make([]models.TaskView, 0, len(tasks)), DeletedAt: now.UTC()}
	for _, t := range tasks {
		snap.Tasks = append(snap.Tasks, t.View(now))
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(user.ID, now)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}
