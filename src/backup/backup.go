// Package backup copies the SQLite database to an S3-compatible bucket.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/fridayweigh/weights/src/config"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/jobs"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/fridayweigh/weights/src/utils"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/jpillora/backoff"
)

const keyTimeLayout = "2006-01-02T150405Z"

const defaultAttempts = 5

var ErrBackupsDisabled = errors.New("backups are not configured")

// ObjectKey names a backup taken at t, e.g. weights/2024-07-05T180000Z.db.
func ObjectKey(prefix string, t time.Time) string {
	return path.Join(prefix, t.UTC().Format(keyTimeLayout)+".db")
}

type Uploader struct {
	client *s3.Client
	bucket string
	prefix string

	// Upload retry policy. The SDK's own retries are turned off so this is
	// the only one.
	Attempts int
	Backoff  backoff.Backoff
}

func NewUploader(ctx context.Context, cfg config.BackupConfig) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, oops.New(ErrBackupsDisabled, "no backup bucket configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(utils.OrDefault(cfg.Region, "us-east-1")),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolver(aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL: cfg.Endpoint,
			}, nil
		})))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.New(err, "failed to load s3 config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.Retryer = retry.AddWithMaxAttempts(retry.NewStandard(), 1)
	})

	return &Uploader{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		Attempts: defaultAttempts,
		Backoff: backoff.Backoff{
			Min:    1 * time.Second,
			Max:    1 * time.Minute,
			Factor: 2,
		},
	}, nil
}

func (u *Uploader) putObject(ctx context.Context, key string, body []byte) error {
	contentType := "application/vnd.sqlite3"
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	return err
}

// Creates the bucket if it turns out to be missing.
func (u *Uploader) uploadOnce(ctx context.Context, key string, body []byte) error {
	err := u.putObject(ctx, key, body)
	if err == nil {
		return nil
	}

	var apiError smithy.APIError
	if errors.As(err, &apiError) && apiError.ErrorCode() == "NoSuchBucket" {
		logging.ExtractLogger(ctx).Info().Str("bucket", u.bucket).Msg("creating backup bucket")
		_, err := u.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: &u.bucket,
		})
		if err != nil {
			return oops.New(err, "failed to create backup bucket")
		}
		return u.putObject(ctx, key, body)
	}
	return err
}

// Upload puts body at key, retrying with exponential backoff.
func (u *Uploader) Upload(ctx context.Context, key string, body []byte) error {
	boff := u.Backoff
	boff.Reset()
	attempts := utils.OrDefault(u.Attempts, defaultAttempts)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = u.uploadOnce(ctx, key, body)
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		dur := boff.Duration()
		logging.ExtractLogger(ctx).Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retrying after", dur).
			Msg("backup upload failed")
		if sleepErr := utils.SleepContext(ctx, dur); sleepErr != nil {
			return oops.New(err, "backup upload canceled")
		}
	}
	return oops.New(err, "failed to upload backup after %d attempts", attempts)
}

// Run snapshots the database and uploads it. Returns the object key.
func (u *Uploader) Run(ctx context.Context, conn *sqlx.DB, now time.Time) (string, error) {
	dir, err := os.MkdirTemp("", "weights-backup-")
	if err != nil {
		return "", oops.New(err, "failed to create backup directory")
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if err := trackerdata.SnapshotSQLite(ctx, conn, snapshot); err != nil {
		return "", err
	}
	contents, err := os.ReadFile(snapshot)
	if err != nil {
		return "", oops.New(err, "failed to read snapshot")
	}

	key := ObjectKey(u.prefix, now)
	if err := u.Upload(ctx, key, contents); err != nil {
		return "", err
	}
	logging.ExtractLogger(ctx).Info().
		Str("bucket", u.bucket).
		Str("key", key).
		Int("bytes", len(contents)).
		Msg("uploaded database backup")
	return key, nil
}

// PeriodicallyBackUp uploads a snapshot every cfg.Interval. When backups are
// disabled, or the database isn't SQLite, the returned job is already finished.
func PeriodicallyBackUp(conn *sqlx.DB, cfg config.BackupConfig) *jobs.Job {
	if !cfg.Enabled {
		return jobs.New("database backups (disabled)").Finish()
	}
	if !db.IsSQLite(conn) {
		logging.Warn().Msg("Database backups only work with sqlite; not starting backup job")
		return jobs.New("database backups (disabled)").Finish()
	}

	uploader, err := NewUploader(context.Background(), cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to set up database backups")
		return jobs.New("database backups (disabled)").Finish()
	}

	interval := utils.OrDefault(cfg.Interval, 24*time.Hour)
	return jobs.Periodically("database backups", clockwork.NewRealClock(), interval, func(ctx context.Context) error {
		_, err := uploader.Run(ctx, conn, time.Now())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		return nil
	})
}
