package formatter

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ryantate/typingpool-sub000/internal/models"
	"github.com/ryantate/typingpool-sub000/internal/services"
	th "github.com/ryantate/typingpool-sub000/internal/testing"
)

func TestRenderQuestion(t *testing.T) {
	row := &models.Row{
		AudioURL:  "https://files.example.com/tp/chunk.1.mp3",
		ProjectID: "interview-42",
	}

	t.Run("Hidden Fields Round Trip", func(t *testing.T) {
		data, err := RenderQuestion(QuestionForRow(row, "Transcribe", "Type what you hear."))
		if err != nil {
			t.Fatalf("RenderQuestion failed: %v", err)
		}

		fields, err := services.ParseQuestionFields(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("ParseQuestionFields failed: %v", err)
		}
		if fields[models.ColAudioURL] != row.AudioURL {
			t.Errorf("expected audio_url %s, got %q", row.AudioURL, fields[models.ColAudioURL])
		}
		if fields[models.ColProjectID] != "interview-42" {
			t.Errorf("expected project_id, got %q", fields[models.ColProjectID])
		}
	})

	t.Run("Content", func(t *testing.T) {
		data, _ := RenderQuestion(QuestionForRow(row, "Transcribe", "Type what you hear."))
		output := string(data)

		for _, want := range []string{"<title>Transcribe</title>", `src="https://files.example.com/tp/chunk.1.mp3"`, `name="transcription"`, "Type what you hear."} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("Escapes Values", func(t *testing.T) {
		page := QuestionPage{Title: `<script>alert(1)</script>`, Hidden: map[string]string{"x": `"><b>`}}
		data, err := RenderQuestion(page)
		if err != nil {
			t.Fatalf("RenderQuestion failed: %v", err)
		}
		if strings.Contains(string(data), "<script>alert") || strings.Contains(string(data), `"><b>`) {
			t.Errorf("expected values escaped, got %s", data)
		}
	})

	t.Run("Stable Output", func(t *testing.T) {
		a, _ := RenderQuestion(QuestionForRow(row, "T", ""))
		b, _ := RenderQuestion(QuestionForRow(row, "T", ""))
		if !bytes.Equal(a, b) {
			t.Error("expected identical documents for identical rows")
		}
	})
}

func TestExporters(t *testing.T) {
	rows := []*models.Row{
		{AudioFile: "chunk.0.mp3", Transcript: "Hello there.", Worker: "W1"},
		{AudioFile: "chunk.1.mp3"},
		{AudioURL: "https://h/tp/chunk.2.mp3", Transcript: "Goodbye."},
	}

	t.Run("ExportTranscriptMarkdown", func(t *testing.T) {
		data, err := ExportTranscriptMarkdown("Interview", rows)
		if err != nil {
			t.Fatalf("ExportTranscriptMarkdown failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "# Interview\n\n") {
			t.Errorf("Markdown missing title, got: %s", output)
		}
		if !strings.Contains(output, "**Chunks**: 2 transcribed, 1 pending") {
			t.Errorf("Markdown missing counts, got: %s", output)
		}
		if !strings.Contains(output, "## 1. chunk.0.mp3\n\n**Worker**: W1\n\nHello there.") {
			t.Errorf("Markdown missing first section, got: %s", output)
		}
		if !strings.Contains(output, "## 2. chunk.1.mp3\n\n_pending_") {
			t.Errorf("Markdown missing pending marker, got: %s", output)
		}
		if !strings.Contains(output, "## 3. https://h/tp/chunk.2.mp3") {
			t.Errorf("expected URL when no local file name, got: %s", output)
		}
	})

	t.Run("ExportTranscriptText", func(t *testing.T) {
		data, err := ExportTranscriptText("Interview", rows)
		if err != nil {
			t.Fatalf("ExportTranscriptText failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Transcript: Interview\n") {
			t.Errorf("Text missing title, got: %s", output)
		}
		if !strings.Contains(output, "2. chunk.1.mp3\n[pending]") {
			t.Errorf("Text missing pending chunk, got: %s", output)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		data, err := ExportTranscriptText("Empty", nil)
		if err != nil {
			t.Fatalf("ExportTranscriptText failed: %v", err)
		}
		if !strings.Contains(string(data), "Chunks: 0 transcribed, 0 pending") {
			t.Errorf("unexpected output %s", data)
		}
	})
}

func TestWriteTranscript(t *testing.T) {
	t.Run("Writes File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "transcript.md")
		if err := WriteTranscript(path, []byte("# T\n")); err != nil {
			t.Fatalf("WriteTranscript failed: %v", err)
		}
		th.AssertFileExists(t, path)
		if got := th.MustReadFile(t, path); got != "# T\n" {
			t.Errorf("unexpected content %q", got)
		}
	})

	t.Run("Overwrites", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "transcript.txt")
		th.MustWriteFile(t, path, "old")
		if err := WriteTranscript(path, []byte("new")); err != nil {
			t.Fatalf("WriteTranscript failed: %v", err)
		}
		if got := th.MustReadFile(t, path); got != "new" {
			t.Errorf("unexpected content %q", got)
		}
	})
}
