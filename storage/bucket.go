package storage

import (
	"errors"
	"os"

	"photoserver/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Bucket describes where objects live: a directory on disk or an S3 compatible bucket (R2)
type Bucket struct {
	Name          string
	StorageType   string
	Path          string // directory on disk when StorageType is file
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // objects are publicly readable under this URL
	ACL           string
}

func BucketFromConfig(cfg *config.Config) *Bucket {
	return &Bucket{
		Name:          cfg.R2BucketName,
		StorageType:   cfg.StorageType,
		Path:          cfg.StorageDir,
		Endpoint:      cfg.R2EndpointURL,
		Region:        cfg.R2Region,
		AccessKey:     cfg.R2AccessKeyID,
		SecretKey:     cfg.R2SecretKey,
		PublicBaseURL: cfg.R2PublicBaseURL,
		ACL:           cfg.R2ObjectACL,
	}
}

func (b *Bucket) Validate() error {
	switch b.StorageType {
	case config.StorageTypeFile:
		if b.Path == "" {
			return errors.New("storage directory is not set")
		}
		return os.MkdirAll(b.Path, 0777)
	case config.StorageTypeS3:
		if b.Name == "" || b.Endpoint == "" || b.AccessKey == "" || b.SecretKey == "" {
			return errors.New("R2 bucket name, endpoint and credentials are required")
		}
		if b.PublicBaseURL == "" {
			return errors.New("R2 public base URL is required")
		}
		return nil
	}
	return errors.New("unknown storage type: " + b.StorageType)
}

// CreateSVC creates an S3 client for the bucket endpoint
func (b *Bucket) CreateSVC() (*s3.S3, error) {
	region := b.Region
	if region == "" {
		region = "auto"
	}
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(b.Endpoint),
		Region:           aws.String(region),
		Credentials:      credentials.NewStaticCredentials(b.AccessKey, b.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

// NewObjectStore picks the implementation matching the bucket storage type
func NewObjectStore(b *Bucket, filesBaseURL string) (ObjectStore, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.StorageType == config.StorageTypeFile {
		return NewDiskStorage(b.Path, filesBaseURL), nil
	}
	return NewS3Storage(b)
}
