package sinks

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/tidelog/tidelog"
	"github.com/tidelog/tidelog/internal/utils"
	"github.com/tidelog/tidelog/pkg/format"
)

const (
	defaultMaxSizeMB = 100
	bytesPerMB       = 1024 * 1024

	// backupStampFormat names rotated files by minute: YYYYMMDDHHMM.
	backupStampFormat = "200601021504"

	compressionCopyBuffer = 32 * 1024
)

// CompressionConfig configures gzip compression of rotated log files.
type CompressionConfig struct {
	// Level is the gzip compression level.
	Level int
	// DeleteOriginal removes the rotated file after successful
	// compression.
	DeleteOriginal bool
	// Extension is the suffix of compressed files (default: .gz).
	Extension string
}

func defaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:          gzip.DefaultCompression,
		DeleteOriginal: true,
		Extension:      ".gz",
	}
}

// FileOptions configures a FileSink.
type FileOptions struct {
	// Path is the log file path.
	Path string
	// MaxSize is the maximum file size in bytes before rotation. Zero or
	// negative selects 100 MiB.
	MaxSize int64
	// Compress gzips rotated files in the background.
	Compress bool
	// Compression overrides the default compression settings.
	Compression *CompressionConfig
	// FileMode sets the permissions of new log files. Zero selects 0644.
	FileMode os.FileMode
	// RotationCallback is called after rotation with the path of the
	// rotated file.
	RotationCallback func(string)
	// ErrorHandler is called when background file operations fail.
	ErrorHandler func(error)
	// Formatter renders records; nil selects the JSON formatter.
	Formatter format.Formatter
	// ID is the sink's id for targeted records. The zero value accepts
	// broadcast records only.
	ID int32
}

// FileSink renders records to a log file, rotating it when it exceeds a
// size limit. Rotated files carry a minute-resolution timestamp suffix and
// are optionally gzipped in the background.
type FileSink struct {
	core
	writer *fileWriter
}

var _ tidelog.Sink = (*FileSink)(nil)

// NewFileSink creates a FileSink, creating the log file and its directory
// as needed.
func NewFileSink(opts FileOptions) (*FileSink, error) {
	f := opts.Formatter
	if f == nil {
		f = format.NewJSONFormatter()
	}

	id := opts.ID
	if id == 0 {
		id = Broadcast
	}

	w, err := newFileWriter(opts)
	if err != nil {
		return nil, err
	}

	return &FileSink{
		core:   newCore("file", id, f, w),
		writer: w,
	}, nil
}

// Path returns the sink's current log file path.
func (s *FileSink) Path() string {
	return s.writer.path
}

// fileWriter appends to the log file and rotates it when the next write
// would exceed the size limit.
type fileWriter struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	maxSize     int64
	size        int64
	mode        os.FileMode
	compress    bool
	compression CompressionConfig
	onRotate    func(string)
	onError     func(error)

	bg sync.WaitGroup
}

func newFileWriter(opts FileOptions) (*fileWriter, error) {
	if opts.Path == "" {
		return nil, ewrap.New("log file path is required")
	}

	securePath, err := utils.SecurePath(opts.Path)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid log file path")
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxSizeMB * bytesPerMB
	}

	mode := opts.FileMode
	if mode == 0 {
		mode = 0o644
	}

	compression := defaultCompressionConfig()
	if opts.Compression != nil {
		compression = *opts.Compression
	}

	if compression.Extension == "" {
		compression.Extension = ".gz"
	}

	dir := filepath.Dir(securePath)

	err = os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, ewrap.Wrapf(err, "creating log directory").
			WithMetadata("path", dir)
	}

	file, err := os.OpenFile(securePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, mode)
	if err != nil {
		return nil, ewrap.Wrapf(err, "opening log file").
			WithMetadata("path", securePath)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, ewrap.Wrapf(err, "getting file stats").
			WithMetadata("path", securePath)
	}

	return &fileWriter{
		file:        file,
		path:        securePath,
		maxSize:     maxSize,
		size:        info.Size(),
		mode:        mode,
		compress:    opts.Compress,
		compression: compression,
		onRotate:    opts.RotationCallback,
		onError:     opts.ErrorHandler,
	}, nil
}

// Write appends data to the log file, rotating first when the write would
// push the file past its size limit.
func (w *fileWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, ewrap.New("log file is closed")
	}

	if w.size+int64(len(data)) > w.maxSize {
		err := w.rotate()
		if err != nil {
			w.reportError(err)

			return 0, ewrap.Wrap(err, "rotating log file")
		}
	}

	n, err := w.file.Write(data)
	if err != nil {
		w.reportError(err)

		return n, ewrap.Wrap(err, "writing to log file")
	}

	w.size += int64(n)

	return n, nil
}

// Sync flushes the file to stable storage. A closed writer syncs nothing.
func (w *fileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Sync()
	if err != nil {
		return ewrap.Wrap(err, "syncing log file")
	}

	return nil
}

// Close syncs and closes the file after waiting for background
// compressions. Closing twice is harmless.
func (w *fileWriter) Close() error {
	w.bg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Sync()
	if err != nil {
		return ewrap.Wrap(err, "final sync before close")
	}

	err = w.file.Close()
	if err != nil {
		return ewrap.Wrap(err, "closing log file")
	}

	w.file = nil

	return nil
}

// rotate renames the current file to a stamped backup and starts a fresh
// one. The caller holds w.mu.
func (w *fileWriter) rotate() error {
	err := w.file.Close()
	if err != nil {
		return ewrap.Wrap(err, "closing current log file")
	}

	backupPath := w.backupPath(time.Now())

	err = os.Rename(w.path, backupPath)
	if err != nil {
		return ewrap.Wrapf(err, "renaming log file").
			WithMetadata("from", w.path).
			WithMetadata("to", backupPath)
	}

	if w.compress {
		w.bg.Add(1)

		go func() {
			defer w.bg.Done()
			w.compressFile(backupPath)
		}()
	}

	if w.onRotate != nil {
		w.onRotate(backupPath)
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, w.mode)
	if err != nil {
		return ewrap.Wrap(err, "creating new log file")
	}

	w.file = file
	w.size = 0

	return nil
}

// backupPath stamps the rotated file name by minute and disambiguates
// rotations that land in the same minute.
func (w *fileWriter) backupPath(now time.Time) string {
	stamp := now.Format(backupStampFormat)
	base := fmt.Sprintf("%s.%s", w.path, stamp)

	candidate := base
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			if w.compress {
				if _, err := os.Stat(candidate + w.compression.Extension); os.IsNotExist(err) {
					return candidate
				}
			} else {
				return candidate
			}
		}

		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// compressFile gzips a rotated file in the background. A panic leaves no
// partial compressed file behind.
func (w *fileWriter) compressFile(path string) {
	defer func() {
		if r := recover(); r != nil {
			_ = os.Remove(path + w.compression.Extension)
			w.reportError(ewrap.New(fmt.Sprintf("compression panic: %v", r)))
		}
	}()

	err := w.performCompression(path)
	if err != nil {
		w.reportError(ewrap.Wrap(err, "compressing rotated log"))
	}
}

func (w *fileWriter) performCompression(path string) error {
	source, err := os.Open(path) //nolint:gosec // The path came from our own rotation.
	if err != nil {
		return ewrap.Wrapf(err, "opening rotated file").
			WithMetadata("path", path)
	}
	defer func() { _ = source.Close() }()

	compressedPath := path + w.compression.Extension

	compressed, err := os.OpenFile(compressedPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // Derived from the rotated path.
	if err != nil {
		return ewrap.Wrapf(err, "creating compressed file").
			WithMetadata("path", compressedPath)
	}

	gz, err := gzip.NewWriterLevel(compressed, w.gzipLevel())
	if err != nil {
		_ = compressed.Close()
		_ = os.Remove(compressedPath)

		return ewrap.Wrap(err, "creating gzip writer")
	}

	gz.Name = filepath.Base(path)

	buf := make([]byte, compressionCopyBuffer)

	_, err = io.CopyBuffer(gz, source, buf)
	if err == nil {
		err = gz.Close()
	}

	if err == nil {
		err = compressed.Sync()
	}

	if err == nil {
		err = compressed.Close()
	} else {
		_ = compressed.Close()
	}

	if err != nil {
		_ = os.Remove(compressedPath)

		return ewrap.Wrapf(err, "writing compressed file").
			WithMetadata("path", path).
			WithMetadata("compressed_path", compressedPath)
	}

	if w.compression.DeleteOriginal {
		err := os.Remove(path)
		if err != nil {
			return ewrap.Wrapf(err, "removing rotated file").
				WithMetadata("path", path)
		}
	}

	return nil
}

func (w *fileWriter) gzipLevel() int {
	level := w.compression.Level
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return gzip.DefaultCompression
	}

	return level
}

func (w *fileWriter) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
