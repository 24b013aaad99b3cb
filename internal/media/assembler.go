// Package media downloads a recording's uploaded chunks and assembles
// them into a single playable audio file using ffmpeg.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/platform/logger"
)

const (
	// downloadBatchSize caps simultaneous storage connections while
	// still overlapping network latency.
	downloadBatchSize = 5

	// downloadRetries is the per-chunk retry budget after the first
	// attempt.
	downloadRetries = 1
)

// extensionAliases maps container aliases onto the extension ffmpeg and
// the providers expect for the underlying format.
var extensionAliases = map[string]string{
	".opus": ".ogg",
	".oga":  ".ogg",
}

// Downloader fetches one object from storage into a local file.
type Downloader interface {
	Download(ctx context.Context, bucket, key, destPath string) error
}

// Assembler turns an ordered set of recording chunks into one audio
// file. The returned file lives in its own temp directory that the
// caller must remove when done.
type Assembler struct {
	store Downloader
	log   *slog.Logger

	// run executes an external command and returns its combined output.
	// Overridable in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)

	// retryWait is the pause before retrying a failed chunk download.
	retryWait time.Duration
}

// NewAssembler creates an assembler backed by the given storage client.
func NewAssembler(store Downloader, log *slog.Logger) *Assembler {
	if store == nil {
		panic("store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		store:     store,
		log:       log.With(slog.String("component", "assembler")),
		run:       runCommand,
		retryWait: time.Second,
	}
}

// Assemble downloads all chunks and concatenates them into one file.
// The strategy depends on standalone: independently decodable chunks are
// joined by the concat demuxer without re-encoding, raw fragments are
// byte-concatenated and passed through the encoder once to repair the
// container. Scratch files are removed on every path; the output file
// and its directory belong to the caller.
func (a *Assembler) Assemble(
	ctx context.Context,
	chunks []domain.RecordingChunk,
	standalone bool,
) (outPath string, err error) {
	if len(chunks) == 0 {
		return "", domain.ErrNoChunks
	}

	log := logger.FromContextOrDefault(ctx, a.log)

	ordered := make([]domain.RecordingChunk, len(chunks))
	copy(ordered, chunks)
	domain.SortChunks(ordered)

	scratch, err := os.MkdirTemp("", "chunks-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	outDir, err := os.MkdirTemp("", "assembled-")
	if err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(outDir)
		}
	}()

	paths, err := a.downloadAll(ctx, ordered, scratch)
	if err != nil {
		return "", err
	}

	outPath = filepath.Join(outDir, "recording"+outputExtension(ordered[0].StoragePath))

	switch {
	case len(paths) == 1:
		// Single chunk: rename into place, no re-encode.
		if err = os.Rename(paths[0], outPath); err != nil {
			return "", fmt.Errorf("failed to move single chunk into place: %w", err)
		}
	case standalone:
		err = a.concatDemux(ctx, paths, scratch, outPath)
	default:
		err = a.concatBinary(ctx, paths, scratch, outPath)
	}
	if err != nil {
		return "", err
	}

	if _, statErr := os.Stat(outPath); statErr != nil {
		err = fmt.Errorf("assembled output %s does not exist: %w", outPath, statErr)
		return "", err
	}

	log.Debug("recording assembled",
		slog.Int("chunks", len(ordered)),
		slog.Bool("standalone", standalone),
		slog.String("output", outPath))
	return outPath, nil
}

// downloadAll fetches every chunk into the scratch directory with
// bounded parallelism, preserving chunk order in the returned paths.
func (a *Assembler) downloadAll(
	ctx context.Context,
	chunks []domain.RecordingChunk,
	scratch string,
) ([]string, error) {
	paths := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	for start := 0; start < len(chunks); start += downloadBatchSize {
		end := start + downloadBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				chunk := chunks[i]
				dest := filepath.Join(scratch,
					fmt.Sprintf("chunk_%05d%s", chunk.ChunkNumber, filepath.Ext(chunk.StoragePath)))
				paths[i] = dest
				errs[i] = a.downloadWithRetry(ctx, chunk, dest)
			}(i)
		}
		wg.Wait()
	}

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("chunk %d download failed: %w", chunks[i].ChunkNumber, err)
		}
	}
	return paths, nil
}

// downloadWithRetry attempts a chunk download, retrying once after a
// short pause. Exhausting the budget fails the whole assembly.
func (a *Assembler) downloadWithRetry(ctx context.Context, chunk domain.RecordingChunk, dest string) error {
	var err error
	for attempt := 0; attempt <= downloadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.retryWait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = a.store.Download(ctx, chunk.StorageBucket, chunk.StoragePath, dest); err == nil {
			return nil
		}
		a.log.Warn("chunk download failed",
			slog.Int("chunk", chunk.ChunkNumber),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}
	return err
}

// concatDemux joins independently decodable chunks through ffmpeg's
// concat demuxer, copying streams without re-encoding.
func (a *Assembler) concatDemux(ctx context.Context, paths []string, scratch, outPath string) error {
	var list strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&list, "file '%s'\n", p)
	}
	listPath := filepath.Join(scratch, "concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	out, err := a.run(ctx, "ffmpeg",
		"-y", "-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w: %s", err, truncate(out))
	}
	return nil
}

// concatBinary byte-concatenates raw container fragments, then passes
// the result through the encoder once so the output is a valid file.
func (a *Assembler) concatBinary(ctx context.Context, paths []string, scratch, outPath string) error {
	combined := filepath.Join(scratch, "combined"+filepath.Ext(paths[0]))

	dst, err := os.Create(combined)
	if err != nil {
		return fmt.Errorf("failed to create combined file: %w", err)
	}
	for _, p := range paths {
		src, err := os.Open(p)
		if err != nil {
			_ = dst.Close()
			return fmt.Errorf("failed to open chunk %s: %w", p, err)
		}
		_, err = io.Copy(dst, src)
		_ = src.Close()
		if err != nil {
			_ = dst.Close()
			return fmt.Errorf("failed to append chunk %s: %w", p, err)
		}
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to finalize combined file: %w", err)
	}

	out, err := a.run(ctx, "ffmpeg", "-y", "-i", combined, outPath)
	if err != nil {
		return fmt.Errorf("ffmpeg repair pass failed: %w: %s", err, truncate(out))
	}
	return nil
}

// ProbeDuration returns the audio duration of a file via ffprobe.
func (a *Assembler) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	out, err := a.run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, truncate(out))
	}

	var seconds float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &seconds); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// outputExtension derives the output extension from a chunk's storage
// path, remapping container aliases onto their underlying format.
func outputExtension(storagePath string) string {
	ext := strings.ToLower(filepath.Ext(storagePath))
	if ext == "" {
		return ".webm"
	}
	if mapped, ok := extensionAliases[ext]; ok {
		return mapped
	}
	return ext
}

// runCommand executes an external command, returning combined output.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// truncate keeps command output in error messages readable.
func truncate(out []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(out))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
