// Package source reads the input documents of a request, either from
// multipart uploads or, when enabled, from an s3:// or http(s):// file_url.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingFile    = errors.New("no file uploaded")
	ErrTooLarge       = errors.New("file too large")
	ErrRemoteDisabled = errors.New("remote sources are disabled")
	ErrBadURL         = errors.New("unsupported file_url")
	ErrFetch          = errors.New("fetch failed")
)

// URLField is the form field naming a remote input.
const URLField = "file_url"

// Input is one document handed to an operation.
type Input struct {
	Name string
	Data []byte
}

// objectAPI is the S3 surface the fetcher needs besides the downloader.
type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

type Options struct {
	AllowRemote bool
	MaxBytes    int64
	HTTPTimeout time.Duration
	// S3 is optional; s3:// inputs are rejected without it.
	S3 *s3.Client
}

type Fetcher struct {
	allowRemote bool
	maxBytes    int64
	http        *http.Client
	s3          objectAPI
	dl          downloader
}

func New(opts Options) *Fetcher {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	f := &Fetcher{
		allowRemote: opts.AllowRemote,
		maxBytes:    opts.MaxBytes,
		http:        &http.Client{Timeout: opts.HTTPTimeout},
	}
	if opts.S3 != nil {
		f.s3 = opts.S3
		f.dl = manager.NewDownloader(opts.S3)
	}
	return f
}

// S3Config describes how to reach the bucket holding remote inputs.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

// NewS3Client builds a client from the default AWS chain, overridden by
// static keys and a custom endpoint (MinIO and friends) when given.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	var loadOpts []func(*awscfg.LoadOptions) error
	if c.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(c.Region))
	}
	if c.AccessKey != "" && c.SecretKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// One returns the first upload in field, or the document named by file_url.
func (f *Fetcher) One(ctx context.Context, r *http.Request, field string) (Input, error) {
	if r.MultipartForm != nil {
		if fhs := r.MultipartForm.File[field]; len(fhs) > 0 {
			return f.readPart(fhs[0])
		}
	}
	if u := strings.TrimSpace(r.FormValue(URLField)); u != "" {
		return f.Fetch(ctx, u)
	}
	return Input{}, ErrMissingFile
}

// Upload returns the first upload in field. Unlike One it never falls back
// to file_url, for secondary files sent alongside the main document.
func (f *Fetcher) Upload(r *http.Request, field string) (Input, error) {
	if r.MultipartForm != nil {
		if fhs := r.MultipartForm.File[field]; len(fhs) > 0 {
			return f.readPart(fhs[0])
		}
	}
	return Input{}, fmt.Errorf("%w: %s", ErrMissingFile, field)
}

// Many returns every upload in field followed by every file_url document.
func (f *Fetcher) Many(ctx context.Context, r *http.Request, field string) ([]Input, error) {
	var out []Input
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File[field] {
			in, err := f.readPart(fh)
			if err != nil {
				return nil, err
			}
			out = append(out, in)
		}
		for _, u := range r.MultipartForm.Value[URLField] {
			if u = strings.TrimSpace(u); u == "" {
				continue
			}
			in, err := f.Fetch(ctx, u)
			if err != nil {
				return nil, err
			}
			out = append(out, in)
		}
	}
	if len(out) == 0 {
		return nil, ErrMissingFile
	}
	return out, nil
}

func (f *Fetcher) readPart(fh *multipart.FileHeader) (Input, error) {
	if f.maxBytes > 0 && fh.Size > f.maxBytes {
		return Input{}, fmt.Errorf("%w: %s", ErrTooLarge, fh.Filename)
	}
	file, err := fh.Open()
	if err != nil {
		return Input{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	data, err := f.readLimited(file)
	if err != nil {
		return Input{}, err
	}
	return Input{Name: path.Base(strings.ReplaceAll(fh.Filename, "\\", "/")), Data: data}, nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Fetch downloads a remote document.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (Input, error) {
	if !f.allowRemote {
		return Input{}, ErrRemoteDisabled
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	switch u.Scheme {
	case "s3":
		return f.fetchS3(ctx, u)
	case "http", "https":
		return f.fetchHTTP(ctx, u)
	}
	return Input{}, fmt.Errorf("%w: scheme %q", ErrBadURL, u.Scheme)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, u *url.URL) (Input, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Input{}, fmt.Errorf("%w: http %d", ErrFetch, resp.StatusCode)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return Input{}, ErrTooLarge
	}
	data, err := f.readLimited(resp.Body)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return Input{}, err
		}
		return Input{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return Input{Name: nameFromPath(u.Path), Data: data}, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, u *url.URL) (Input, error) {
	if f.dl == nil {
		return Input{}, fmt.Errorf("%w: s3 is not configured", ErrBadURL)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return Input{}, fmt.Errorf("%w: invalid s3 url: %s", ErrBadURL, u.String())
	}

	head, err := f.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	size := aws.ToInt64(head.ContentLength)
	if f.maxBytes > 0 && size > f.maxBytes {
		return Input{}, ErrTooLarge
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	n, err := f.dl.Download(ctx, buf, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Msg("downloaded s3 input")
	return Input{Name: nameFromPath(key), Data: bytes.Clone(buf.Bytes()[:n])}, nil
}

func nameFromPath(p string) string {
	name := path.Base(p)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
