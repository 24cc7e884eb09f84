package statuscheck

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// BucketHeader is the S3 call used to confirm the source bucket is reachable.
type BucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Checker aggregates readiness checks for the pieces a request may touch.
type Checker struct {
	mediaRoot   string
	redis       RedisPinger
	s3          BucketHeader
	s3Bucket    string
	libreOffice string
}

// Options configures the Checker. Nil dependencies are reported as
// disabled and do not affect readiness.
type Options struct {
	MediaRoot   string
	Redis       RedisPinger
	S3          BucketHeader
	S3Bucket    string
	LibreOffice string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK       bool   `json:"ok"`
	Required bool   `json:"required"`
	Message  string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Ready       bool   `json:"ready"`
	Storage     Status `json:"storage"`
	Redis       Status `json:"redis"`
	S3          Status `json:"s3"`
	LibreOffice Status `json:"libreoffice"`
}

func New(opts Options) *Checker {
	return &Checker{
		mediaRoot:   opts.MediaRoot,
		redis:       opts.Redis,
		s3:          opts.S3,
		s3Bucket:    opts.S3Bucket,
		libreOffice: opts.LibreOffice,
	}
}

// Summary returns the current status snapshot. Ready is false when a
// required subsystem fails; only the media root is required.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Storage:     c.checkStorage(),
		Redis:       c.checkRedis(ctx),
		S3:          c.checkS3(ctx),
		LibreOffice: c.checkLibreOffice(),
	}
	s.Ready = true
	for _, st := range []Status{s.Storage, s.Redis, s.S3} {
		if st.Required && !st.OK {
			s.Ready = false
		}
	}
	return s
}

func (c *Checker) checkStorage() Status {
	if c.mediaRoot == "" {
		return Status{Required: true, Message: "media root not configured"}
	}
	f, err := os.CreateTemp(filepath.Join(c.mediaRoot, "jobs"), ".ready-*")
	if err != nil {
		return Status{Required: true, Message: trimError(err)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return Status{OK: true, Required: true, Message: "Writable"}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{Message: "Disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		// the limiter fails open, so Redis never gates readiness
		return Status{Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3 == nil || c.s3Bucket == "" {
		return Status{Message: "Disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket}); err != nil {
		return Status{Required: true, Message: trimError(err)}
	}
	return Status{OK: true, Required: true, Message: "Connected"}
}

func (c *Checker) checkLibreOffice() Status {
	bin := c.libreOffice
	if bin == "" {
		bin = "soffice"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return Status{Message: "Binary not found"}
	}
	return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
