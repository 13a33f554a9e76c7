package storage

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/defaults"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// S3Storage keeps every object in one S3 bucket, under the configured root prefix.
type S3Storage struct {
	Config  Config
	Session *session.Session

	client *s3.S3
}

// NewS3Storage creates a new S3Storage with a new aws.Session.
func NewS3Storage(config Config) (*S3Storage, error) {
	sess, err := newAWSSession(config)
	if err != nil {
		return nil, errors.Wrap(err, "aws session")
	}

	return NewS3StorageWithSession(config, sess), nil
}

// NewS3StorageWithSession returns a new S3Storage with a given AWS Session.
func NewS3StorageWithSession(config Config, sess *session.Session) *S3Storage {
	return &S3Storage{
		Config:  config,
		Session: sess,
		client:  s3.New(sess),
	}
}

// Write puts the object, retrying failed puts MaxRetries times with the configured delay between.
func (s *S3Storage) Write(ctx context.Context, key string, body []byte, options *Options) error {
	input := &s3.PutObjectInput{
		Bucket: s.bucket(),
		Key:    s.objectKey(key),
	}
	if options != nil && options.TTL > 0 {
		input.Expires = aws.Time(time.Now().Add(time.Duration(options.TTL) * time.Second))
	}

	var err error
	for attempt := 0; attempt <= s.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.Config.Delay()):
			}
		}

		input.Body = bytes.NewReader(body)
		if _, err = s.client.PutObjectWithContext(ctx, input); err == nil {
			return nil
		}
	}

	return errors.Wrapf(err, "write %s", key)
}

func (s *S3Storage) Read(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: s.bucket(),
		Key:    s.objectKey(key),
	})
	if err != nil {
		return nil, s.convertError(err, "read", key)
	}
	defer object.Body.Close()

	b, err := ioutil.ReadAll(object.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read body %s", key)
	}

	return b, nil
}

func (s *S3Storage) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: s.bucket(),
		Key:    s.objectKey(key),
	})
	if err != nil {
		return s.convertError(err, "remove", key)
	}

	return nil
}

// Search downloads the objects under the query's path concurrently.
func (s *S3Storage) Search(ctx context.Context, query map[string]string) ([][]byte, error) {
	keys, err := s.findKeys(ctx, query["path"])
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	buffers := make([]*aws.WriteAtBuffer, len(keys))
	objects := make([]s3manager.BatchDownloadObject, len(keys))
	for i, k := range keys {
		buffers[i] = aws.NewWriteAtBuffer(nil)
		objects[i] = s3manager.BatchDownloadObject{
			Object: &s3.GetObjectInput{Bucket: s.bucket(), Key: aws.String(k)},
			Writer: buffers[i],
		}
	}

	iter := &s3manager.DownloadObjectsIterator{Objects: objects}
	if err := s3manager.NewDownloader(s.Session).DownloadWithIterator(ctx, iter); err != nil {
		return nil, errors.Wrapf(err, "download %s", query["path"])
	}

	result := make([][]byte, len(buffers))
	for i, buf := range buffers {
		result[i] = buf.Bytes()
	}

	return result, nil
}

func (s *S3Storage) List(ctx context.Context, path string) ([]string, error) {
	keys, err := s.findKeys(ctx, path)
	if err != nil {
		return nil, err
	}

	prefix := s.rootPrefix()
	for i := range keys {
		keys[i] = strings.TrimPrefix(keys[i], prefix)
	}

	return keys, nil
}

func (s *S3Storage) Clear(ctx context.Context, query map[string]string) error {
	keys, err := s.findKeys(ctx, query["path"])
	if err != nil || len(keys) == 0 {
		return err
	}

	objects := make([]s3manager.BatchDeleteObject, len(keys))
	for i, k := range keys {
		objects[i] = s3manager.BatchDeleteObject{
			Object: &s3.DeleteObjectInput{Bucket: s.bucket(), Key: aws.String(k)},
		}
	}

	iter := &s3manager.DeleteObjectsIterator{Objects: objects}
	if err := s3manager.NewBatchDelete(s.Session).Delete(ctx, iter); err != nil {
		return errors.Wrapf(err, "clear %s", query["path"])
	}

	return nil
}

// Close does nothing since the session doesn't hold connections open.
func (s *S3Storage) Close() error {
	return nil
}

// findKeys returns the object keys directly under path, across every page of the listing.
func (s *S3Storage) findKeys(ctx context.Context, path string) ([]string, error) {
	prefix := strings.TrimSuffix(*s.objectKey(path), "/")
	if prefix != "" {
		prefix += "/"
	}

	var keys []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    s.bucket(),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			keys = append(keys, aws.StringValue(object.Key))
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", path)
	}

	return keys, nil
}

func (s *S3Storage) bucket() *string {
	return aws.String(s.Config.Bucket)
}

func (s *S3Storage) rootPrefix() string {
	root := strings.TrimSuffix(s.Config.Root, "/")
	if root == "" {
		return ""
	}
	return root + "/"
}

func (s *S3Storage) objectKey(key string) *string {
	return aws.String(s.rootPrefix() + key)
}

// convertError returns ErrNotFound for a missing key.
func (s *S3Storage) convertError(err error, action, key string) error {
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
		return ErrNotFound
	}
	return errors.Wrapf(err, "%s %s", action, key)
}

// newAWSSession puts the configured static credentials ahead of the default AWS credential chain.
func newAWSSession(config Config) (*session.Session, error) {
	awsDefaults := defaults.Get()
	providers := append([]credentials.Provider{
		&credentials.StaticProvider{Value: credentials.Value{
			AccessKeyID:     config.AccessKey,
			SecretAccessKey: config.Secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		}},
	}, defaults.CredProviders(awsDefaults.Config, awsDefaults.Handlers)...)

	awsConfig := aws.NewConfig().
		WithCredentials(credentials.NewChainCredentials(providers)).
		WithMaxRetries(config.MaxRetries)
	if config.Region != "" {
		awsConfig = awsConfig.WithRegion(config.Region)
	}

	return session.NewSession(awsConfig)
}
