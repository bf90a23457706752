package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"simfluence/internal/store/sqlitevec"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "post.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadRecordValidates(t *testing.T) {
	rec, err := readRecord(writeFile(t, `{"length":50,"postTimeOfDay":"morning","avgLikes":12}`))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Length != 50 || rec.PostTimeOfDay != "morning" || rec.AvgLikes != 12 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	_, err = readRecord(writeFile(t, `{"length":50,"avgLikes":-3}`))
	if err == nil || !strings.Contains(err.Error(), "avgLikes") {
		t.Fatalf("expected avgLikes rejection, got %v", err)
	}
	if _, err := readRecord(writeFile(t, `{"length":`)); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := readRecord(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestPrintPredictions(t *testing.T) {
	ps := []sqlitevec.StoredPrediction{
		{TS: time.Now(), RequestID: "0123456789abcdef", Vector: []float32{1, 2, 3}, Likes: 120, Comments: 14, Shares: 6},
	}
	var out bytes.Buffer
	if err := printPredictions(&out, ps); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	for _, want := range []string{"REQUEST", "01234567", "120", " 17 ", "1 predictions"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in:\n%s", want, s)
		}
	}
	if strings.Contains(s, "89abcdef") {
		t.Fatalf("request id not shortened:\n%s", s)
	}
}
