// Package s3 implements storage.FileStore on an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/storage"
)

// Config holds S3 backend settings.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Store persists certificate files as objects keyed by their secure
// paths. The org-folder/file-name structure of the secure path becomes
// the object key, so the same token-based lookup works here as on disk.
type Store struct {
	client *awss3.Client
	bucket string
	logger zerolog.Logger
}

// NewStore creates an S3-backed store.
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "s3-store").Logger(),
	}, nil
}

// Save uploads content under its secure path.
func (s *Store) Save(ctx context.Context, securePath string, content []byte) error {
	components := secure.ParseFilePath(securePath)
	if components == nil {
		return fmt.Errorf("%w: %q", secure.ErrInvalidPathFormat, securePath)
	}

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(securePath),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(storage.ContentType(components.FileExtension)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	s.logger.Debug().Str("key", securePath).Int("size", len(content)).Msg("stored certificate file")
	return nil
}

// Open retrieves a file by its secure path.
func (s *Store) Open(ctx context.Context, securePath string) (io.ReadCloser, error) {
	if secure.ParseFilePath(securePath) == nil {
		return nil, fmt.Errorf("%w: %q", secure.ErrInvalidPathFormat, securePath)
	}

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(securePath),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return out.Body, nil
}

// FindByToken lists the organization's folders (matched by -org{id}
// suffix) and searches their keys for the token.
func (s *Store) FindByToken(ctx context.Context, organizationID int64, token, extension string) (string, error) {
	if !secure.IsValidToken(token) {
		return "", fmt.Errorf("%w: %q", secure.ErrInvalidTokenFormat, token)
	}

	folders, err := s.orgFolders(ctx, organizationID)
	if err != nil {
		return "", err
	}

	wanted := token + "." + extension

	for _, folder := range folders {
		paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(folder),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return "", fmt.Errorf("failed to list organization folder: %w", err)
			}
			for _, obj := range page.Contents {
				if strings.HasSuffix(aws.ToString(obj.Key), wanted) {
					return aws.ToString(obj.Key), nil
				}
			}
		}
	}

	return "", domain.ErrFileNotFound
}

// orgFolders returns the key prefixes of folders belonging to the
// organization. More than one can exist after a rename.
func (s *Store) orgFolders(ctx context.Context, organizationID int64) ([]string, error) {
	suffix := secure.OrgFolderSuffix(organizationID) + "/"

	var folders []string
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list folders: %w", err)
		}
		for _, prefix := range page.CommonPrefixes {
			if strings.HasSuffix(aws.ToString(prefix.Prefix), suffix) {
				folders = append(folders, aws.ToString(prefix.Prefix))
			}
		}
	}

	return folders, nil
}

// Delete removes a file by its secure path.
func (s *Store) Delete(ctx context.Context, securePath string) error {
	if secure.ParseFilePath(securePath) == nil {
		return fmt.Errorf("%w: %q", secure.ErrInvalidPathFormat, securePath)
	}

	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(securePath),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Ensure Store implements storage.FileStore.
var _ storage.FileStore = (*Store)(nil)
