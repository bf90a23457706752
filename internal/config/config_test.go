package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTripKeepsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "simfluence.yaml")
	cfg := Default()
	cfg.Models.Dir = "/srv/models"
	cfg.Training.Estimators = 50
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Models.Dir != "/srv/models" || got.Training.Estimators != 50 {
		t.Fatalf("unexpected config: %+v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Training.Seed != 42 || got.Training.Estimators != 200 {
		t.Fatalf("expected defaults, got %+v", got.Training)
	}
}

func TestPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("models:\n  reload: always\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Models.Reload != "always" {
		t.Fatalf("reload = %q", got.Models.Reload)
	}
	if got.Models.Dir != "./models" {
		t.Fatalf("dir default lost: %q", got.Models.Dir)
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("SIMFLUENCE_MODEL_DIR", "/tmp/m")
	t.Setenv("SIMFLUENCE_RPS", "3.5")
	t.Setenv("SIMFLUENCE_BURST", "nope")
	cfg := Default()
	cfg.ResolveEnv()
	if cfg.Models.Dir != "/tmp/m" {
		t.Fatalf("dir = %q", cfg.Models.Dir)
	}
	if cfg.Server.RPS != 3.5 {
		t.Fatalf("rps = %v", cfg.Server.RPS)
	}
	if cfg.Server.Burst != 40 {
		t.Fatalf("invalid burst should be ignored, got %d", cfg.Server.Burst)
	}
}

func TestSaveEmptyPath(t *testing.T) {
	if err := Save("", Default()); err == nil {
		t.Fatal("expected error")
	}
}
