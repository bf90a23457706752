// Package modelstore persists the three engagement regressors and loads them
// back with an explicit cache lifecycle.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"simfluence/internal/features"
	"simfluence/internal/gbm"
	"simfluence/internal/logging"
	"simfluence/internal/metrics"
)

// ErrModelsUnavailable means at least one bundle file is missing.
var ErrModelsUnavailable = errors.New("models unavailable")

const (
	TargetLikes    = "likes"
	TargetComments = "comments"
	TargetShares   = "shares"
)

// Targets lists the predicted counts in file order.
var Targets = []string{TargetLikes, TargetComments, TargetShares}

// FileName is the bundle file for a target.
func FileName(target string) string { return "combined_" + target + "_predictor.json" }

// Reload policies.
const (
	ReloadAlways = "always"
	ReloadMTime  = "mtime"
)

// Bundle is one trained regressor with the exact column order it was fit on.
type Bundle struct {
	Target        string             `json:"target"`
	SchemaVersion int                `json:"schema_version"`
	Features      []string           `json:"features"`
	DatasetInfo   string             `json:"dataset_info"`
	Aux           *features.AuxStats `json:"aux,omitempty"`
	TrainedAt     time.Time          `json:"trained_at"`
	Model         *gbm.Regressor     `json:"model"`
}

func (b *Bundle) validate() error {
	switch {
	case b.Model == nil:
		return errors.New("bundle has no model")
	case len(b.Features) == 0:
		return errors.New("bundle has no feature columns")
	case b.Model.NumFeatures != len(b.Features):
		return fmt.Errorf("model expects %d features, bundle lists %d", b.Model.NumFeatures, len(b.Features))
	case b.SchemaVersion > features.Version:
		return fmt.Errorf("schema version %d is newer than supported %d", b.SchemaVersion, features.Version)
	}
	return nil
}

// Bundles is one consistent set of the three models.
type Bundles struct {
	Likes    *Bundle
	Comments *Bundle
	Shares   *Bundle
}

// Get returns the bundle for target, or nil.
func (bs Bundles) Get(target string) *Bundle {
	switch target {
	case TargetLikes:
		return bs.Likes
	case TargetComments:
		return bs.Comments
	case TargetShares:
		return bs.Shares
	}
	return nil
}

func (bs *Bundles) set(target string, b *Bundle) {
	switch target {
	case TargetLikes:
		bs.Likes = b
	case TargetComments:
		bs.Comments = b
	case TargetShares:
		bs.Shares = b
	}
}

type stamp struct {
	mod  time.Time
	size int64
}

// Store loads bundles from Dir. It is safe for concurrent use.
type Store struct {
	dir    string
	policy string

	mu     sync.Mutex
	cached *Bundles
	stamps map[string]stamp
}

// New returns a store over dir. Unknown policies behave like ReloadMTime.
func New(dir, policy string) *Store {
	if policy != ReloadAlways {
		policy = ReloadMTime
	}
	return &Store{dir: dir, policy: policy}
}

// Load returns the current bundles. Under ReloadMTime the decoded set is
// reused until a file's modification time or size changes.
func (s *Store) Load(ctx context.Context) (Bundles, error) {
	if err := ctx.Err(); err != nil {
		return Bundles{}, err
	}
	stamps, err := s.stat()
	if err != nil {
		s.Invalidate()
		return Bundles{}, s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy == ReloadMTime && s.cached != nil && sameStamps(s.stamps, stamps) {
		metrics.IncModelLoad("cached")
		return *s.cached, nil
	}
	bs, err := ReadDir(s.dir)
	if err != nil {
		s.cached, s.stamps = nil, nil
		return Bundles{}, s.fail(err)
	}
	metrics.IncModelLoad("loaded")
	logging.Ctx(ctx).Info().Str("dir", s.dir).Str("dataset_info", bs.Likes.DatasetInfo).Msg("models_loaded")
	if s.policy == ReloadMTime {
		s.cached, s.stamps = &bs, stamps
	}
	return bs, nil
}

// Invalidate drops the cached bundles so the next Load re-reads the files.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached, s.stamps = nil, nil
	s.mu.Unlock()
}

func (s *Store) fail(err error) error {
	if errors.Is(err, ErrModelsUnavailable) {
		metrics.IncModelLoad("unavailable")
	} else {
		metrics.IncModelLoad("error")
	}
	return err
}

func (s *Store) stat() (map[string]stamp, error) {
	out := make(map[string]stamp, len(Targets))
	for _, t := range Targets {
		fi, err := os.Stat(filepath.Join(s.dir, FileName(t)))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelsUnavailable, FileName(t))
		}
		if err != nil {
			return nil, err
		}
		out[t] = stamp{mod: fi.ModTime(), size: fi.Size()}
	}
	return out, nil
}

func sameStamps(a, b map[string]stamp) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !v.mod.Equal(w.mod) || v.size != w.size {
			return false
		}
	}
	return true
}

// ReadDir decodes all three bundles from dir without caching.
func ReadDir(dir string) (Bundles, error) {
	var bs Bundles
	for _, t := range Targets {
		b, err := ReadFile(filepath.Join(dir, FileName(t)))
		if err != nil {
			return Bundles{}, err
		}
		bs.set(t, b)
	}
	for _, t := range Targets[1:] {
		if !slices.Equal(bs.Get(t).Features, bs.Likes.Features) {
			return Bundles{}, fmt.Errorf("%s: feature columns differ from %s bundle", FileName(t), TargetLikes)
		}
	}
	return bs, nil
}

// ReadFile decodes one bundle.
func ReadFile(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelsUnavailable, filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &b, nil
}

// Save writes all three bundles to dir. Every file is staged first and only
// renamed into place once all of them encoded and wrote cleanly.
func Save(dir string, bs Bundles) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	staged := make(map[string]string, len(Targets))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for _, t := range Targets {
		b := bs.Get(t)
		if b == nil {
			cleanup()
			return fmt.Errorf("save: missing %s bundle", t)
		}
		if err := b.validate(); err != nil {
			cleanup()
			return fmt.Errorf("save %s: %w", t, err)
		}
		raw, err := json.Marshal(b)
		if err != nil {
			cleanup()
			return fmt.Errorf("encode %s: %w", t, err)
		}
		f, err := os.CreateTemp(dir, "."+FileName(t)+".*")
		if err != nil {
			cleanup()
			return err
		}
		staged[t] = f.Name()
		_, werr := f.Write(raw)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			cleanup()
			return errors.Join(werr, cerr)
		}
	}
	for _, t := range Targets {
		if err := os.Rename(staged[t], filepath.Join(dir, FileName(t))); err != nil {
			cleanup()
			return err
		}
		delete(staged, t)
	}
	return nil
}
