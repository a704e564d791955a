package compressor

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type GzipCompressor struct {
	level int
}

func NewGzip() *GzipCompressor {
	return &GzipCompressor{level: gzip.DefaultCompression}
}

// Compress writes a gzip copy of sourcePath to destPath. The header keeps
// the source's base name and modification time.
func (g *GzipCompressor) Compress(sourcePath, destPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	return writeAtomically(destPath, func(w io.Writer) error {
		zw, err := gzip.NewWriterLevel(w, g.level)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		zw.Name = filepath.Base(sourcePath)
		zw.ModTime = info.ModTime()

		if _, err := io.Copy(zw, source); err != nil {
			zw.Close()
			return fmt.Errorf("failed to compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
		return nil
	})
}

func (g *GzipCompressor) Decompress(sourcePath, destPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer source.Close()

	zr, err := gzip.NewReader(source)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	return writeAtomically(destPath, func(w io.Writer) error {
		if _, err := io.Copy(w, zr); err != nil {
			return fmt.Errorf("failed to decompress: %w", err)
		}
		return nil
	})
}

// writeAtomically fills a temp file next to destPath and renames it into
// place, so destPath never holds a partial result.
func writeAtomically(destPath string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close dest file: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move dest file into place: %w", err)
	}
	return nil
}
