package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
)

// barCodec encodes one bar file.
type barCodec interface {
	Extension() string
	Write(path string, bars []models.Bar) error
	Read(path string) ([]models.Bar, error)
}

// newBarCodec picks a codec by format name. Returns nil if unsupported.
func newBarCodec(format string) barCodec {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return csvCodec{}
	case "parquet":
		return parquetCodec{}
	default:
		return nil
	}
}

// FileBarStore keeps one file per identity: {dir}/{TICKER}_{interval}_data.{ext}.
type FileBarStore struct {
	dir   string
	codec barCodec
}

var _ domrepo.BarStore = (*FileBarStore)(nil)

func NewFileBarStore(dir, format string) (*FileBarStore, error) {
	codec := newBarCodec(format)
	if codec == nil {
		return nil, fmt.Errorf("bar store: unsupported format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bar store: %w", err)
	}
	return &FileBarStore{dir: dir, codec: codec}, nil
}

func (s *FileBarStore) path(id models.Identity) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_data.%s", id.Ticker, id.Interval, s.codec.Extension()))
}

func (s *FileBarStore) SaveBars(ctx context.Context, id models.Identity, bars []models.Bar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("save bars %s: empty series", id)
	}
	path := s.path(id)
	tmp := path + ".tmp"
	if err := s.codec.Write(tmp, bars); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save bars %s: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save bars %s: %w", id, err)
	}
	return nil
}

func (s *FileBarStore) LoadBars(ctx context.Context, id models.Identity) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.path(id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domrepo.ErrNoBars, id)
	}
	bars, err := s.codec.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load bars %s: %w", id, err)
	}
	return bars, nil
}

func (s *FileBarStore) Close() error { return nil }
