package storage

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const s3Timeout = 60 * time.Second

type S3Storage struct {
	Bucket   Bucket
	s3Client s3iface.S3API
	uploader *s3manager.Uploader
}

func NewS3Storage(bucket *Bucket) (*S3Storage, error) {
	svc, err := bucket.CreateSVC()
	if err != nil {
		return nil, err
	}
	return &S3Storage{
		Bucket:   *bucket,
		s3Client: svc,
		uploader: s3manager.NewUploaderWithClient(svc),
	}, nil
}

func (s *S3Storage) URLFor(key string) string {
	return s.Bucket.PublicBaseURL + "/" + key
}

// Put uploads the local copy to the bucket
func (s *S3Storage) Put(ctx context.Context, localFile, key string) (string, error) {
	data, err := os.Open(localFile)
	if err != nil {
		return "", err
	}
	defer data.Close()

	ctx, cancel := context.WithTimeout(ctx, s3Timeout)
	defer cancel()
	input := s3manager.UploadInput{
		Bucket:      &s.Bucket.Name,
		Key:         aws.String(key),
		ContentType: aws.String(ContentType(localFile)),
		Body:        data,
	}
	if s.Bucket.ACL != "" {
		input.ACL = &s.Bucket.ACL
	}
	if _, err = s.uploader.UploadWithContext(ctx, &input); err != nil {
		return "", err
	}
	return s.URLFor(key), nil
}

func (s *S3Storage) List(ctx context.Context, prefix, delimiter string, limit int) ([]string, error) {
	if limit == 0 {
		limit = DefaultListLimit
	}
	pageSize := DefaultListLimit
	if limit > 0 {
		pageSize = min(limit, DefaultListLimit)
	}
	ctx, cancel := context.WithTimeout(ctx, s3Timeout)
	defer cancel()
	input := &s3.ListObjectsV2Input{
		Bucket:  &s.Bucket.Name,
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(int64(pageSize)),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	result := []string{}
	err := s.s3Client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, p := range page.CommonPrefixes {
			result = append(result, aws.StringValue(p.Prefix))
		}
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			// R2 may return the folder itself as an object
			if delimiter != "" && key == prefix && strings.HasSuffix(key, delimiter) {
				continue
			}
			result = append(result, key)
		}
		return limit < 0 || len(result) < limit
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s3Timeout)
	defer cancel()
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(key),
	})
	return err
}
