package storage

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries for a write operation
	DefaultMaxRetries = 4

	// DefaultBoltFile is the name of the bolt database file within the root.
	DefaultBoltFile = "pollr.db"

	// BackendS3 is the backend for any bucket that doesn't name a local backend.
	BackendS3 = "s3"
)

// Config selects and configures a storage backend. The Bucket names either a local backend or the
// S3 bucket that holds every object, and Root is the key prefix (or directory) within it.
type Config struct {
	Bucket     string
	Root       string
	MaxRetries int
	RetryDelay int // Milliseconds

	// Empty AWS values fall back to the default AWS credential chain.
	Region    string
	AccessKey string
	Secret    string
}

// NewConfig returns a Config for bucket with the default retries.
func NewConfig(bucket, root string) Config {
	return Config{
		Bucket:     bucket,
		Root:       root,
		MaxRetries: DefaultMaxRetries,
	}
}

// Backend returns BucketMemory, BucketStandalone, BucketBolt or BackendS3.
func (c Config) Backend() string {
	bucket := strings.ToLower(c.Bucket)
	switch bucket {
	case BucketMemory, BucketStandalone, BucketBolt:
		return bucket
	}
	return BackendS3
}

// Delay is the wait between write retries.
func (c Config) Delay() time.Duration {
	return time.Duration(c.RetryDelay) * time.Millisecond
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{Backend:%s Bucket:%s", c.Backend(), c.Bucket)
	if c.Root != "" {
		fmt.Fprintf(&b, " Root:%s", c.Root)
	}
	if c.Backend() == BackendS3 {
		fmt.Fprintf(&b, " Region:%s", c.Region)
		if c.Secret != "" {
			b.WriteString(" Secret:***")
		}
	}
	fmt.Fprintf(&b, " MaxRetries:%d}", c.MaxRetries)
	return b.String()
}
