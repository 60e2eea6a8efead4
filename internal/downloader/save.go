// Package downloader saves proxied video streams to disk for the CLI.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/logger"
)

// partSuffix marks an incomplete download
const partSuffix = ".part"

// Opener fetches a media URL, optionally from a byte offset
type Opener interface {
	Open(ctx context.Context, rawURL, rangeHeader string) (*http.Response, error)
}

// Job describes one file to save
type Job struct {
	VideoURL string
	Path     string
}

// Result reports the outcome of a Job
type Result struct {
	Job      Job
	Bytes    int64
	Resumed  bool
	Duration time.Duration
	Error    error
}

// ProgressFunc is called after every chunk with bytes written so far and the
// expected total, which is -1 when unknown.
type ProgressFunc func(written, total int64)

// Saver streams Opener responses into files on fs
type Saver struct {
	opener   Opener
	fs       afero.Fs
	logger   logger.Logger
	progress ProgressFunc
}

// NewSaver creates a Saver writing to fs; a nil fs means the OS filesystem
func NewSaver(opener Opener, fs afero.Fs, log logger.Logger) *Saver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Saver{opener: opener, fs: fs, logger: log}
}

// OnProgress registers a progress callback
func (s *Saver) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// Save downloads job.VideoURL to job.Path. Bytes land in a .part file first,
// which a later Save resumes with a Range request.
func (s *Saver) Save(ctx context.Context, job Job) Result {
	start := time.Now()
	result := Result{Job: job}

	if dir := filepath.Dir(job.Path); dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			result.Error = fmt.Errorf("create directory: %w", err)
			return result
		}
	}

	part := job.Path + partSuffix
	var offset int64
	if info, err := s.fs.Stat(part); err == nil && info.Size() > 0 {
		offset = info.Size()
	}

	rangeHeader := ""
	if offset > 0 {
		rangeHeader = fmt.Sprintf("bytes=%d-", offset)
	}

	resp, err := s.opener.Open(ctx, job.VideoURL, rangeHeader)
	if err != nil && offset > 0 && errors.CodeOf(err) == http.StatusRequestedRangeNotSatisfiable {
		// The partial file is as long as the object or longer; start over.
		s.logger.DebugWithFields("Resume rejected, restarting download", map[string]interface{}{
			"path":   part,
			"offset": offset,
		})
		offset = 0
		resp, err = s.opener.Open(ctx, job.VideoURL, "")
	}
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if offset > 0 && resp.StatusCode == http.StatusPartialContent {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		result.Resumed = true
	} else {
		offset = 0
	}

	f, err := s.fs.OpenFile(part, flags, 0644)
	if err != nil {
		result.Error = fmt.Errorf("open file: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}

	n, copyErr := io.Copy(f, &progressReader{r: resp.Body, written: offset, total: total, fn: s.progress})
	closeErr := f.Close()
	result.Bytes = offset + n
	result.Duration = time.Since(start)

	if copyErr != nil {
		result.Error = fmt.Errorf("save failed: %w", copyErr)
		s.logger.WarnWithFields("Download interrupted, partial file kept", map[string]interface{}{
			"path":  part,
			"bytes": result.Bytes,
			"error": copyErr.Error(),
		})
		return result
	}
	if closeErr != nil {
		result.Error = fmt.Errorf("close file: %w", closeErr)
		return result
	}

	if err := s.fs.Rename(part, job.Path); err != nil {
		result.Error = fmt.Errorf("finalize file: %w", err)
		return result
	}

	s.logger.DebugWithFields("Video saved", map[string]interface{}{
		"path":     job.Path,
		"bytes":    result.Bytes,
		"resumed":  result.Resumed,
		"duration": result.Duration,
	})
	return result
}

type progressReader struct {
	r       io.Reader
	written int64
	total   int64
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.fn != nil {
			p.fn(p.written, p.total)
		}
	}
	return n, err
}
