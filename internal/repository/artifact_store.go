package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/lstm"
	applogger "PriceCast/pkg/logger"
)

const (
	modelSuffix  = "_predictor_model.json"
	scalerSuffix = "_scaler.json"
	scalerFormat = "pricecast.scaler/v1"
)

// scalerFile carries the scaler plus the training metadata of its model.
type scalerFile struct {
	Format    string          `json:"format"`
	Min       float64         `json:"min"`
	Max       float64         `json:"max"`
	TrainedAt time.Time       `json:"trained_at"`
	Report    forecast.Report `json:"report"`
}

// FileArtifactStore keeps each artifact as a model file and a scaler file
// in one directory.
type FileArtifactStore struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)

func NewFileArtifactStore(dir string, l *applogger.Logger) (*FileArtifactStore, error) {
	if dir == "" {
		return nil, errors.New("artifact store: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &FileArtifactStore{dir: dir, l: l}, nil
}

func (s *FileArtifactStore) Dir() string { return s.dir }

func (s *FileArtifactStore) paths(id models.Identity) (model, scaler string) {
	base := filepath.Join(s.dir, id.Ticker+"_"+id.Interval)
	return base + modelSuffix, base + scalerSuffix
}

// Save writes the model first and the scaler last, each through a temp
// file and rename, so a complete scaler file implies a complete model.
func (s *FileArtifactStore) Save(ctx context.Context, art forecast.Artifact) error {
	if err := art.Validate(); err != nil {
		return err
	}
	net, ok := art.Model.(*lstm.Network)
	if !ok {
		return fmt.Errorf("artifact store: unsupported model type %T", art.Model)
	}
	modelBlob, err := json.Marshal(net)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	scalerBlob, err := json.MarshalIndent(scalerFile{
		Format:    scalerFormat,
		Min:       art.Scaler.Min,
		Max:       art.Scaler.Max,
		TrainedAt: art.TrainedAt.UTC(),
		Report:    art.Report,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scaler: %w", err)
	}

	modelPath, scalerPath := s.paths(art.Identity)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeAtomic(modelPath, modelBlob); err != nil {
		return err
	}
	if err := writeAtomic(scalerPath, scalerBlob); err != nil {
		return err
	}
	s.l.Info("artifact saved",
		applogger.String("identity", art.Identity.Key()),
		applogger.String("model", modelPath),
		applogger.Int("window", net.WindowSize()),
	)
	return nil
}

// Load returns forecast.ErrNotFound unless both files are present.
func (s *FileArtifactStore) Load(ctx context.Context, id models.Identity) (forecast.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return forecast.Artifact{}, err
	}
	modelPath, scalerPath := s.paths(id)
	modelBlob, err := readPart(modelPath, id)
	if err != nil {
		return forecast.Artifact{}, err
	}
	scalerBlob, err := readPart(scalerPath, id)
	if err != nil {
		return forecast.Artifact{}, err
	}

	net, err := lstm.Load(modelBlob)
	if err != nil {
		return forecast.Artifact{}, fmt.Errorf("load model %s: %w", id, err)
	}
	var sf scalerFile
	if err := json.Unmarshal(scalerBlob, &sf); err != nil {
		return forecast.Artifact{}, fmt.Errorf("load scaler %s: %w", id, err)
	}
	if sf.Format != "" && sf.Format != scalerFormat {
		return forecast.Artifact{}, fmt.Errorf("load scaler %s: unknown format %q", id, sf.Format)
	}
	art := forecast.Artifact{
		Identity:  id,
		Model:     net,
		Scaler:    features.Scaler{Min: sf.Min, Max: sf.Max},
		TrainedAt: sf.TrainedAt,
		Report:    sf.Report,
	}
	if err := art.Validate(); err != nil {
		return forecast.Artifact{}, err
	}
	return art, nil
}

// List returns identities that have both files, sorted by key.
func (s *FileArtifactStore) List(ctx context.Context) ([]models.Identity, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[e.Name()] = true
	}
	var out []models.Identity
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, modelSuffix) {
			continue
		}
		base := strings.TrimSuffix(name, modelSuffix)
		if !present[base+scalerSuffix] {
			continue
		}
		i := strings.LastIndex(base, "_")
		if i <= 0 || i == len(base)-1 {
			continue
		}
		out = append(out, models.Identity{Ticker: base[:i], Interval: base[i+1:]})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key() < out[b].Key() })
	return out, ctx.Err()
}

func readPart(path string, id models.Identity) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", forecast.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return b, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
