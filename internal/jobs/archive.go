package jobs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
)

// BuildZip bundles the recognized artifacts of a job into an in-memory
// deflate archive. Members are sorted by name and stored without any
// directory component.
func (s *Store) BuildZip(id string) (*bytes.Buffer, error) {
	arts, err := s.List(id)
	if err != nil {
		return nil, err
	}
	if len(arts) == 0 {
		return nil, ErrEmptyJob
	}
	names := make([]string, len(arts))
	for i, a := range arts {
		names[i] = a.Name
	}
	sort.Strings(names)

	dir, _ := s.dir(id)
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range names {
		if err := addMember(zw, filepath.Join(dir, name), name); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish zip: %w", err)
	}
	return buf, nil
}

func addMember(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip member %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("zip copy %s: %w", name, err)
	}
	return nil
}
