package modelstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"simfluence/internal/features"
	"simfluence/internal/gbm"
)

func fitted(t *testing.T, target string, scale float64) *Bundle {
	t.Helper()
	p := gbm.DefaultParams()
	p.Estimators = 10
	r := gbm.New(p)
	X := [][]float64{{1, 0}, {2, 1}, {3, 0}, {4, 1}}
	y := []float64{scale, 2 * scale, 3 * scale, 4 * scale}
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	return &Bundle{
		Target:        target,
		SchemaVersion: features.Version,
		Features:      []string{features.ColLength, features.ColContainsImage},
		DatasetInfo:   "test",
		TrainedAt:     time.Now().UTC(),
		Model:         r,
	}
}

func testBundles(t *testing.T, scale float64) Bundles {
	return Bundles{
		Likes:    fitted(t, TargetLikes, scale),
		Comments: fitted(t, TargetComments, scale),
		Shares:   fitted(t, TargetShares, scale),
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, testBundles(t, 1)); err != nil {
		t.Fatal(err)
	}
	for _, tg := range Targets {
		if _, err := os.Stat(filepath.Join(dir, FileName(tg))); err != nil {
			t.Fatalf("%s not written: %v", tg, err)
		}
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
	bs, err := New(dir, ReloadAlways).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if bs.Likes.DatasetInfo != "test" || len(bs.Shares.Features) != 2 {
		t.Fatalf("unexpected bundle: %+v", bs.Likes)
	}
}

func TestLoadMissingIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	_, err := New(dir, ReloadMTime).Load(context.Background())
	if !errors.Is(err, ErrModelsUnavailable) {
		t.Fatalf("got %v", err)
	}
	if err := Save(dir, testBundles(t, 1)); err != nil {
		t.Fatal(err)
	}
	_ = os.Remove(filepath.Join(dir, FileName(TargetShares)))
	if _, err := New(dir, ReloadAlways).Load(context.Background()); !errors.Is(err, ErrModelsUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestLoadCorruptIsNotUnavailable(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, testBundles(t, 1)); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(dir, FileName(TargetComments)), []byte("{nope"), 0o644)
	_, err := New(dir, ReloadAlways).Load(context.Background())
	if err == nil || errors.Is(err, ErrModelsUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestMTimeCacheReflectsNewFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, testBundles(t, 1)); err != nil {
		t.Fatal(err)
	}
	s := New(dir, ReloadMTime)
	ctx := context.Background()
	first, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := s.Load(ctx)
	if first.Likes != again.Likes {
		t.Fatal("expected cached bundle on unchanged files")
	}

	if err := Save(dir, testBundles(t, 100)); err != nil {
		t.Fatal(err)
	}
	// force a visible stamp change even on coarse filesystem clocks
	future := time.Now().Add(time.Hour)
	for _, tg := range Targets {
		_ = os.Chtimes(filepath.Join(dir, FileName(tg)), future, future)
	}
	fresh, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Likes == first.Likes {
		t.Fatal("expected reload after files changed")
	}
	v, _ := fresh.Likes.Model.Predict([]float64{4, 1})
	if v < 50 {
		t.Fatalf("expected new model, got prediction %v", v)
	}

	s.Invalidate()
	after, _ := s.Load(ctx)
	if after.Likes == fresh.Likes {
		t.Fatal("expected reload after Invalidate")
	}
}

func TestSaveRejectsIncompleteSet(t *testing.T) {
	dir := t.TempDir()
	bs := testBundles(t, 1)
	bs.Shares = nil
	if err := Save(dir, bs); err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("partial write: %v", entries)
	}
}

func TestReadDirRejectsMismatchedColumns(t *testing.T) {
	dir := t.TempDir()
	bs := testBundles(t, 1)
	bs.Shares.Features = []string{features.ColLength, features.ColShouldImprove}
	if err := Save(dir, bs); err != nil {
		t.Fatal(err)
	}
	_, err := ReadDir(dir)
	if err == nil || errors.Is(err, ErrModelsUnavailable) {
		t.Fatalf("expected column mismatch error, got %v", err)
	}
}
