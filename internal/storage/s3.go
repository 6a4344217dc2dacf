package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config locates the bucket that serves uploads.
type S3Config struct {
	Bucket    string
	KeyPrefix string
	Region    string
	// PublicBaseURL overrides the virtual-hosted bucket URL, e.g. a CDN origin.
	PublicBaseURL string
}

// S3Service uploads objects to Amazon S3 (or compatible APIs).
type S3Service struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	baseURL  string
}

func NewS3Service(client *s3.Client, cfg S3Config) (*S3Service, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	svc := &S3Service{
		client:  client,
		cfg:     cfg,
		baseURL: base,
	}
	if client != nil {
		svc.uploader = manager.NewUploader(client)
	}
	return svc, nil
}

func (s *S3Service) PutObject(ctx context.Context, obj Object) error {
	if obj.Key == "" {
		return fmt.Errorf("object key is required")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.fullKey(obj.Key)),
		Body:   obj.Body,
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", obj.Key, err)
	}
	return nil
}

func (s *S3Service) DeleteObject(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3Service) PublicURL(key string) string {
	return joinURL(s.baseURL, s.fullKey(key))
}

func (s *S3Service) KeyFromURL(raw string) (string, bool) {
	return keyFromURL(s.baseURL, s.cfg.KeyPrefix, raw)
}

func (s *S3Service) fullKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.cfg.KeyPrefix == "" {
		return key
	}
	return s.cfg.KeyPrefix + "/" + key
}

func joinURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + strings.Join(segments, "/")
}

func keyFromURL(base, prefix, raw string) (string, bool) {
	rest, ok := strings.CutPrefix(raw, base+"/")
	if !ok || rest == "" {
		return "", false
	}
	unescaped, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	if prefix != "" {
		unescaped, ok = strings.CutPrefix(unescaped, prefix+"/")
		if !ok {
			return "", false
		}
	}
	return unescaped, unescaped != ""
}

var _ Service = (*S3Service)(nil)
