package repositories

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ryantate/typingpool-sub000/internal/models"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

func newRows(t *testing.T) *RowStore {
	t.Helper()
	return NewRowStore(filepath.Join(t.TempDir(), "data", "rows.csv"))
}

func TestRowStore(t *testing.T) {
	t.Run("Read missing file", func(t *testing.T) {
		rows, err := newRows(t).Read()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("expected empty rows, got %d", len(rows))
		}
	})

	t.Run("Write and Read round trip", func(t *testing.T) {
		store := newRows(t)
		expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		in := []*models.Row{
			{
				AudioURL:      "https://cdn.example.com/tp/a.mp3",
				AudioFile:     "a.mp3",
				ProjectID:     "p1",
				Transcript:    "hello, \"world\"\nsecond line",
				UnitID:        "U1",
				UnitExpiresAt: expires,
				UnitDuration:  3 * time.Hour,
				AudioUploaded: models.MarkerDone,
				HTMLUploaded:  models.MarkerUncertain,
			},
			{AudioURL: "https://cdn.example.com/tp/b.mp3", ProjectID: "p1"},
		}

		if err := store.Write(in, nil); err != nil {
			t.Fatalf("failed to write rows: %v", err)
		}

		out, err := store.Read()
		if err != nil {
			t.Fatalf("failed to read rows: %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(out))
		}

		if out[0].Transcript != in[0].Transcript {
			t.Errorf("transcript mangled: %q", out[0].Transcript)
		}
		if !out[0].UnitExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, out[0].UnitExpiresAt)
		}
		if out[0].UnitDuration != 3*time.Hour {
			t.Errorf("expected duration 3h, got %v", out[0].UnitDuration)
		}
		if out[0].Marker(models.AssetHTML) != models.MarkerUncertain {
			t.Errorf("expected html marker uncertain, got %s", out[0].Marker(models.AssetHTML))
		}
		if out[1].Marker(models.AssetAudio) != models.MarkerNotDone {
			t.Errorf("expected empty marker to read as not-done, got %s", out[1].Marker(models.AssetAudio))
		}
	})

	t.Run("Extra columns survive and extend the header", func(t *testing.T) {
		store := newRows(t)
		rows := []*models.Row{
			{AudioURL: "u1", Extra: map[string]string{"offset": "0:00"}},
			{AudioURL: "u2", Extra: map[string]string{"chunk": "2", "offset": "1:00"}},
		}

		if err := store.Write(rows, nil); err != nil {
			t.Fatalf("failed to write rows: %v", err)
		}

		data, err := os.ReadFile(store.Path())
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		header := strings.SplitN(string(data), "\n", 2)[0]
		want := strings.Join(append(append([]string{}, models.Columns...), "chunk", "offset"), ",")
		if header != want {
			t.Errorf("header = %q, want %q", header, want)
		}

		out, err := store.Read()
		if err != nil {
			t.Fatalf("failed to read rows: %v", err)
		}
		if out[1].Extra["chunk"] != "2" || out[0].Extra["offset"] != "0:00" {
			t.Errorf("extra columns lost: %+v %+v", out[0].Extra, out[1].Extra)
		}
	})

	t.Run("Write with explicit header", func(t *testing.T) {
		store := newRows(t)
		header := []string{models.ColAudioURL, models.ColAudioUploaded}
		if err := store.Write([]*models.Row{{AudioURL: "u1", AudioUploaded: models.MarkerDone}}, header); err != nil {
			t.Fatalf("failed to write rows: %v", err)
		}

		data, _ := os.ReadFile(store.Path())
		if string(data) != "audio_url,audio_uploaded\nu1,done\n" {
			t.Errorf("unexpected file content %q", string(data))
		}
	})

	t.Run("Write leaves no temp files", func(t *testing.T) {
		store := newRows(t)
		for i := 0; i < 3; i++ {
			if err := store.Write([]*models.Row{{AudioURL: "u1"}}, nil); err != nil {
				t.Fatalf("failed to write rows: %v", err)
			}
		}

		entries, err := os.ReadDir(filepath.Dir(store.Path()))
		if err != nil {
			t.Fatalf("failed to list dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only rows.csv, got %d entries", len(entries))
		}
	})

	t.Run("Mutate", func(t *testing.T) {
		store := newRows(t)
		if err := store.Write([]*models.Row{{AudioURL: "u1"}, {AudioURL: "u2"}}, nil); err != nil {
			t.Fatalf("failed to write rows: %v", err)
		}

		err := store.Mutate(func(r *models.Row) error {
			r.Worker = "W-" + r.AudioURL
			return nil
		})
		if err != nil {
			t.Fatalf("mutate failed: %v", err)
		}

		out, _ := store.Read()
		got := []string{out[0].Worker, out[1].Worker}
		if !reflect.DeepEqual(got, []string{"W-u1", "W-u2"}) {
			t.Errorf("unexpected workers %v", got)
		}
	})

	t.Run("Mutate error leaves store untouched", func(t *testing.T) {
		store := newRows(t)
		if err := store.Write([]*models.Row{{AudioURL: "u1"}, {AudioURL: "u2"}}, nil); err != nil {
			t.Fatalf("failed to write rows: %v", err)
		}
		before, _ := os.ReadFile(store.Path())

		boom := errors.New("boom")
		err := store.Mutate(func(r *models.Row) error {
			r.Worker = "changed"
			if r.AudioURL == "u2" {
				return boom
			}
			return nil
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		after, _ := os.ReadFile(store.Path())
		if string(before) != string(after) {
			t.Error("store changed despite mutate error")
		}
	})

	t.Run("Malformed marker", func(t *testing.T) {
		store := newRows(t)
		if err := os.MkdirAll(filepath.Dir(store.Path()), 0o755); err != nil {
			t.Fatal(err)
		}
		content := "audio_url,audio_uploaded\nu1,perhaps\n"
		if err := os.WriteFile(store.Path(), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := store.Read()
		if !errors.Is(err, shared.ErrMalformedReference) {
			t.Errorf("expected ErrMalformedReference, got %v", err)
		}
	})
}
