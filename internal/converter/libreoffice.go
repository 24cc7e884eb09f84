package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrProtected   = errors.New("document is password protected")
	ErrTimeout     = errors.New("conversion timed out")
)

// LibreOffice converts office documents to PDF with a headless soffice
// process per conversion. At most maxWorkers conversions run at once.
type LibreOffice struct {
	bin       string
	timeout   time.Duration
	semaphore chan struct{}
}

type Options struct {
	Binary     string
	MaxWorkers int
	Timeout    time.Duration
}

func NewLibreOffice(opts Options) *LibreOffice {
	if opts.Binary == "" {
		opts.Binary = "libreoffice"
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}
	return &LibreOffice{
		bin:       opts.Binary,
		timeout:   opts.Timeout,
		semaphore: make(chan struct{}, opts.MaxWorkers),
	}
}

// Binary is the configured soffice executable.
func (l *LibreOffice) Binary() string { return l.bin }

// Available reports whether the binary can be found.
func (l *LibreOffice) Available() bool {
	_, err := exec.LookPath(l.bin)
	return err == nil
}

// ConvertToPDF converts inputPath and returns the bytes of the produced PDF.
// The output is written next to the input under workDir and removed
// afterwards; the caller owns workDir.
func (l *LibreOffice) ConvertToPDF(ctx context.Context, inputPath, workDir string) ([]byte, error) {
	if !IsSupported(filepath.Ext(inputPath)) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(inputPath))
	}
	if err := validateInput(inputPath); err != nil {
		return nil, err
	}

	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.semaphore }()

	start := time.Now()
	profileDir := filepath.Join(workDir, "lo-profile-"+uuid.NewString())
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	defer os.RemoveAll(profileDir)
	outDir := filepath.Join(workDir, "lo-out-"+uuid.NewString())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, l.bin,
		"-env:UserInstallation=file://"+profileDir,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, l.timeout)
		}
		if looksProtected(stderr.String()) {
			return nil, ErrProtected
		}
		return nil, fmt.Errorf("conversion failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out := expectedOutputPath(inputPath, outDir)
	data, err := os.ReadFile(out)
	if err != nil {
		if looksProtected(stderr.String()) {
			return nil, ErrProtected
		}
		return nil, fmt.Errorf("output file not created: %w", err)
	}
	log.Info().Str("input", filepath.Base(inputPath)).Dur("duration", time.Since(start)).Msg("conversion successful")
	return data, nil
}

func validateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

func looksProtected(output string) bool {
	s := strings.ToLower(output)
	return strings.Contains(s, "password") || strings.Contains(s, "encrypted")
}

// expectedOutputPath is where soffice writes the result: input base name
// with a .pdf extension.
func expectedOutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	return filepath.Join(outputDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
}

// Families groups the accepted extensions by the endpoint that takes them.
var Families = map[string][]string{
	"word":  {"doc", "docx", "rtf", "odt"},
	"excel": {"xls", "xlsx", "ods", "csv"},
	"ppt":   {"ppt", "pptx", "odp"},
}

// IsSupported checks if a file extension is supported for conversion
func IsSupported(extension string) bool {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	for _, exts := range Families {
		for _, e := range exts {
			if e == ext {
				return true
			}
		}
	}
	return false
}

// InFamily reports whether extension belongs to the named family.
func InFamily(family, extension string) bool {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	for _, e := range Families[family] {
		if e == ext {
			return true
		}
	}
	return false
}
