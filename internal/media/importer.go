package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/carousel-tv/carousel/internal/logger"
)

const (
	importRetryAttempts = 3
	importRetryDelay    = 2 * time.Second
)

// ErrImporterDisabled is returned when Run is called without a bucket configured
var ErrImporterDisabled = errors.New("importer is not configured")

// S3Client is the subset of the S3 API the importer uses
type S3Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ImportOptions configures a bucket import
type ImportOptions struct {
	Bucket      string
	Prefix      string
	Region      string
	Destination string
	Concurrency int
	Formats     []string
}

// ImportResult summarizes one import run
type ImportResult struct {
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// Importer mirrors video objects from an S3 bucket into a local library root.
// A scan of the destination picks up what it downloads.
type Importer struct {
	client     S3Client
	fs         afero.Fs
	opts       ImportOptions
	formats    []string
	retryDelay time.Duration
}

// NewImporter creates an importer with an explicit client, used by tests
func NewImporter(client S3Client, fs afero.Fs, opts ImportOptions) *Importer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = defaultVideoFormats
	}

	return &Importer{
		client:     client,
		fs:         fs,
		opts:       opts,
		formats:    normalizeFormats(formats),
		retryDelay: importRetryDelay,
	}
}

// NewImporterFromConfig builds an importer backed by a real S3 client using
// the default AWS credential chain
func NewImporterFromConfig(ctx context.Context, opts ImportOptions) (*Importer, error) {
	if opts.Bucket == "" {
		return nil, ErrImporterDisabled
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewImporter(s3.NewFromConfig(awsCfg), afero.NewOsFs(), opts), nil
}

// Run lists the bucket and downloads any video objects missing locally.
// Objects already present with a matching size are skipped.
func (im *Importer) Run(ctx context.Context) (*ImportResult, error) {
	if im.opts.Bucket == "" {
		return nil, ErrImporterDisabled
	}

	keys, err := im.listVideoObjects(ctx)
	if err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("bucket", im.opts.Bucket).
		Str("prefix", im.opts.Prefix).
		Int("object_count", len(keys)).
		Int("concurrency", im.opts.Concurrency).
		Msg("Starting library import")

	result := &ImportResult{}
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(im.opts.Concurrency).WithContext(ctx)
	for _, obj := range keys {
		obj := obj
		p.Go(func(ctx context.Context) error {
			status, err := im.importObject(ctx, obj)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", obj.key, err))
			case status == importSkipped:
				result.Skipped++
			default:
				result.Downloaded++
			}
			// Individual object failures don't abort the run
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return result, err
	}

	logger.Log.Info().
		Str("bucket", im.opts.Bucket).
		Int("downloaded", result.Downloaded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Library import completed")

	return result, nil
}

type importStatus int

const (
	importDownloaded importStatus = iota
	importSkipped
)

type bucketObject struct {
	key  string
	size int64
}

// listVideoObjects pages through the bucket and returns video object keys
func (im *Importer) listVideoObjects(ctx context.Context) ([]bucketObject, error) {
	var objects []bucketObject
	var continuationToken *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(im.opts.Bucket),
			ContinuationToken: continuationToken,
		}
		if im.opts.Prefix != "" {
			input.Prefix = aws.String(im.opts.Prefix)
		}

		resp, err := im.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", im.opts.Bucket, err)
		}

		for _, obj := range resp.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			if !im.isVideoKey(*obj.Key) {
				continue
			}
			size := int64(0)
			if obj.Size != nil {
				size = *obj.Size
			}
			objects = append(objects, bucketObject{key: *obj.Key, size: size})
		}

		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		continuationToken = resp.NextContinuationToken
	}

	return objects, nil
}

// importObject downloads one object unless an up-to-date local copy exists
func (im *Importer) importObject(ctx context.Context, obj bucketObject) (importStatus, error) {
	localPath := im.localPath(obj.key)

	if info, err := im.fs.Stat(localPath); err == nil && info.Size() == obj.size {
		logger.Log.Debug().
			Str("key", obj.key).
			Msg("Local copy up to date, skipping")
		return importSkipped, nil
	}

	err := retry.Do(
		func() error {
			return im.download(ctx, obj.key, localPath)
		},
		retry.Context(ctx),
		retry.Attempts(importRetryAttempts),
		retry.Delay(im.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Log.Warn().
				Str("key", obj.key).
				Uint("attempt", n+1).
				Err(err).
				Msg("Download failed, retrying")
		}),
	)
	if err != nil {
		return importDownloaded, err
	}

	logger.Log.Debug().
		Str("key", obj.key).
		Str("path", localPath).
		Msg("Downloaded object")

	return importDownloaded, nil
}

// download streams one object to disk, removing partial files on failure
func (im *Importer) download(ctx context.Context, key, localPath string) error {
	resp, err := im.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(im.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 getObject %s: %w", key, err)
	}
	defer resp.Body.Close()

	if err := im.fs.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(localPath), err)
	}

	out, err := im.fs.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = im.fs.Remove(localPath)
		return fmt.Errorf("copy %s: %w", key, err)
	}
	return out.Close()
}

// localPath maps an object key to its destination path, stripping the
// configured prefix
func (im *Importer) localPath(key string) string {
	rel := key
	if im.opts.Prefix != "" {
		rel = strings.TrimPrefix(rel, im.opts.Prefix)
		rel = strings.TrimPrefix(rel, "/")
	}
	return filepath.Join(im.opts.Destination, filepath.FromSlash(rel))
}

func (im *Importer) isVideoKey(key string) bool {
	ext := strings.ToLower(filepath.Ext(key))
	for _, supported := range im.formats {
		if ext == supported {
			return true
		}
	}
	return false
}
