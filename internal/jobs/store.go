// Package jobs keeps the output files of one request under a per-job
// directory of the media root. The directory tree is the only index: there
// is no database and no cache of job contents.
package jobs

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrNotFound       = errors.New("file not found")
	ErrArtifactExists = errors.New("artifact already exists")
	ErrEmptyJob       = errors.New("no files in job")
)

// DefaultExtensions are the artifact kinds listed and bundled by default.
var DefaultExtensions = []string{".pdf", ".txt"}

type Options struct {
	MediaRoot  string
	URLPrefix  string
	Extensions []string
}

type Store struct {
	root   string
	prefix string
	exts   map[string]bool
}

type Job struct {
	ID        string
	Dir       string
	CreatedAt time.Time
}

// Artifact describes one file of a job as returned to clients.
type Artifact struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	URL     string    `json:"url"`
	ModTime time.Time `json:"-"`
}

func NewStore(opts Options) (*Store, error) {
	if opts.MediaRoot == "" {
		return nil, errors.New("media root is required")
	}
	if opts.URLPrefix == "" {
		opts.URLPrefix = "/api/jobs"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	root, err := filepath.Abs(opts.MediaRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "jobs"), 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir: %w", err)
	}
	s := &Store{
		root:   root,
		prefix: strings.TrimRight(opts.URLPrefix, "/"),
		exts:   make(map[string]bool, len(opts.Extensions)),
	}
	for _, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		s.exts[e] = true
	}
	return s, nil
}

// Root is the absolute media root.
func (s *Store) Root() string { return s.root }

// Prefix is the URL path under which job resources are served, without a
// trailing slash.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) jobsDir() string { return filepath.Join(s.root, "jobs") }

// dir validates id and returns its directory. Only canonical UUIDs reach the
// filesystem, which also keeps ids from naming anything outside jobs/.
func (s *Store) dir(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return "", ErrJobNotFound
	}
	return filepath.Join(s.jobsDir(), id), nil
}

// Create allocates a fresh job directory. An existing directory is never
// reused.
func (s *Store) Create() (*Job, error) {
	for attempt := 0; attempt < 3; attempt++ {
		id := uuid.NewString()
		dir := filepath.Join(s.jobsDir(), id)
		err := os.Mkdir(dir, 0o755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create job dir: %w", err)
		}
		log.Debug().Str("job_id", id).Msg("job created")
		return &Job{ID: id, Dir: dir, CreatedAt: time.Now()}, nil
	}
	return nil, errors.New("create job dir: id collision")
}

func (s *Store) Get(id string) (*Job, error) {
	dir, err := s.dir(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, ErrJobNotFound
	}
	return &Job{ID: id, Dir: dir, CreatedAt: info.ModTime()}, nil
}

// cleanName reduces a caller-supplied name to a bare filename.
func cleanName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == ".." || name == "" {
		return "", false
	}
	return name, true
}

// WriteArtifact stores data as name inside the job. A name that already
// exists is reported as ErrArtifactExists and the file is left untouched.
func (s *Store) WriteArtifact(id, name string, data []byte) (Artifact, error) {
	job, err := s.Get(id)
	if err != nil {
		return Artifact{}, err
	}
	clean, ok := cleanName(name)
	if !ok {
		return Artifact{}, fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	if err := writeExclusive(filepath.Join(job.Dir, clean), data); err != nil {
		return Artifact{}, err
	}
	return s.artifact(id, clean, int64(len(data)), time.Now()), nil
}

// WriteNext stores data as <base>_<n><ext> where n is one past the highest
// number already used for base in the job.
func (s *Store) WriteNext(id, base, ext string, data []byte) (Artifact, error) {
	job, err := s.Get(id)
	if err != nil {
		return Artifact{}, err
	}
	base, ok := cleanName(base)
	if !ok {
		return Artifact{}, fmt.Errorf("%w: invalid base name", ErrNotFound)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	n, err := highestSuffix(job.Dir, base, ext)
	if err != nil {
		return Artifact{}, err
	}
	for attempt := 0; attempt < 16; attempt++ {
		n++
		name := fmt.Sprintf("%s_%d%s", base, n, ext)
		err := writeExclusive(filepath.Join(job.Dir, name), data)
		if errors.Is(err, ErrArtifactExists) {
			continue
		}
		if err != nil {
			return Artifact{}, err
		}
		return s.artifact(id, name, int64(len(data)), time.Now()), nil
	}
	return Artifact{}, fmt.Errorf("%w: %s_N%s", ErrArtifactExists, base, ext)
}

func highestSuffix(dir, base, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan job dir: %w", err)
	}
	best := 0
	prefix := base + "_"
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		num := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		if n, err := strconv.Atoi(num); err == nil && n > best {
			best = n
		}
	}
	return best, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrArtifactExists, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close artifact: %w", err)
	}
	return nil
}

func (s *Store) recognized(name string) bool {
	return s.exts[strings.ToLower(filepath.Ext(name))]
}

// List returns the recognized artifacts of a job, oldest first. Files with
// equal modification times are ordered by name.
func (s *Store) List(id string) ([]Artifact, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(job.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job dir: %w", err)
	}
	out := make([]Artifact, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !s.recognized(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, s.artifact(id, e.Name(), info.Size(), info.ModTime()))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.Before(out[j].ModTime)
		}
		return nameLess(out[i].Name, out[j].Name)
	})
	return out, nil
}

// nameLess orders names that differ only in their numeric suffix by value,
// so base_2.pdf sorts before base_10.pdf.
func nameLess(a, b string) bool {
	ab, an, aok := splitSuffix(a)
	bb, bn, bok := splitSuffix(b)
	if aok && bok && ab == bb && an != bn {
		return an < bn
	}
	return a < b
}

// splitSuffix splits "<base>_<n><ext>" into base+ext and n.
func splitSuffix(name string) (string, int, bool) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	i := strings.LastIndexByte(stem, '_')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(stem[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return stem[:i] + ext, n, true
}

// Open returns a handle on one file of a job. Names that are not a bare
// filename, or that resolve outside the job directory, are not found.
func (s *Store) Open(id, filename string) (*os.File, os.FileInfo, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) || strings.ContainsRune(filename, 0) {
		return nil, nil, ErrNotFound
	}
	path := filepath.Join(job.Dir, filename)
	rel, err := filepath.Rel(job.Dir, path)
	if err != nil || rel != filename {
		return nil, nil, ErrNotFound
	}
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// Remove deletes a job and everything in it.
func (s *Store) Remove(id string) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(job.Dir); err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// Sweep removes jobs whose directory is older than maxAge and returns how
// many were deleted. Entries that are not job directories are left alone.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.jobsDir())
	if err != nil {
		return 0, fmt.Errorf("scan jobs: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.jobsDir(), e.Name())); err != nil {
			log.Warn().Err(err).Str("job_id", e.Name()).Msg("sweep: remove failed")
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *Store) artifact(id, name string, size int64, mod time.Time) Artifact {
	return Artifact{Name: name, Size: size, URL: s.FileURL(id, name), ModTime: mod}
}

// FileURL is the download URL of one artifact. The name is path-escaped so
// characters such as '?', '#' and '%' stay part of the segment.
func (s *Store) FileURL(id, name string) string {
	return fmt.Sprintf("%s/%s/file/%s/", s.prefix, id, url.PathEscape(name))
}

func (s *Store) ZipURL(id string) string {
	return fmt.Sprintf("%s/%s/zip/", s.prefix, id)
}

func (s *Store) JobURL(id string) string {
	return fmt.Sprintf("%s/%s/", s.prefix, id)
}

// ZipName is the download name of a job's bundle.
func ZipName(id string) string { return id + "_split.zip" }
