// Package pdf extracts text from PDF bitstreams with the pdftotext tool
// from poppler-utils.
package pdf

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/filters"
	"github.com/custodia-labs/mediafilter/internal/logger"
)

// Name is the registry name of the filter.
const Name = "pdf"

// Ensure Filter implements the interface.
var _ driven.FormatFilter = (*Filter)(nil)

const (
	toolName = "pdftotext"

	// DefaultTimeout bounds a single pdftotext invocation.
	DefaultTimeout = 2 * time.Minute
)

// pdfMagic starts every PDF file.
var pdfMagic = []byte("%PDF-")

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = fmt.Errorf("%w: %s (install poppler-utils)", domain.ErrToolNotFound, toolName)

// lookPath resolves the tool; replaced in tests.
var lookPath = exec.LookPath

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return out, err
}

// Options tunes text extraction.
type Options struct {
	// MaxPages stops extraction after this many pages (0 = all).
	MaxPages int

	// Timeout bounds one pdftotext run.
	Timeout time.Duration
}

// OptionsFrom reads the max_pages and timeout_seconds filter options.
func OptionsFrom(fs domain.FilterSettings) Options {
	return Options{
		MaxPages: fs.IntOption("max_pages", 0),
		Timeout:  time.Duration(fs.IntOption("timeout_seconds", int(DefaultTimeout/time.Second))) * time.Second,
	}
}

// Filter extracts text from PDF documents.
type Filter struct {
	filters.Output
	runner CommandRunner
	opts   Options

	warnOnce sync.Once
}

// New creates a PDF filter that runs pdftotext.
func New(opts Options) *Filter {
	return NewWithRunner(execRunner{}, opts)
}

// NewWithRunner creates a PDF filter with a custom command runner.
func NewWithRunner(runner CommandRunner, opts Options) *Filter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Filter{
		Output: filters.TextOutput(Name),
		runner: runner,
		opts:   opts,
	}
}

// CheckAvailable reports whether pdftotext can be found in PATH.
func CheckAvailable() error {
	if _, err := lookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install pdftotext.
func InstallInstructions() string {
	return `PDF text extraction requires pdftotext (poppler-utils).

Install it with:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils`
}

// PreProcess skips empty sources and every source when pdftotext is missing.
func (f *Filter) PreProcess(ctx context.Context, sess driven.FilterSession, item *domain.Item, source *domain.Bitstream, verbose bool) (bool, error) {
	if err := CheckAvailable(); err != nil {
		f.warnOnce.Do(func() {
			logger.Warn("pdf: %v, PDF sources are skipped", err)
		})
		return false, nil
	}
	return f.Output.PreProcess(ctx, sess, item, source, verbose)
}

// Transform writes the source to a temporary file and extracts its text.
// Page breaks become blank lines.
func (f *Filter) Transform(ctx context.Context, _ *domain.Item, source io.Reader, verbose bool) (io.ReadCloser, error) {
	if source == nil {
		return nil, domain.ErrInvalidInput
	}

	br := bufio.NewReader(source)
	head, _ := br.Peek(len(pdfMagic))
	if !bytes.Equal(head, pdfMagic) {
		return nil, fmt.Errorf("%w: missing PDF header", domain.ErrInvalidInput)
	}

	tmp, err := os.CreateTemp("", "mediafilter-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, br); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	args := []string{"-layout", "-enc", "UTF-8"}
	if f.opts.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprint(f.opts.MaxPages))
	}
	args = append(args, tmp.Name(), "-")

	if verbose {
		logger.Debug("pdf: %s %s", toolName, strings.Join(args, " "))
	}

	runCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	out, err := f.runner.Run(runCtx, toolName, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	return filters.TextResult(cleanText(string(out)))
}

// cleanText turns form feeds into blank lines and trims trailing spaces
// left by layout mode.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
