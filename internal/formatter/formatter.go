// package formatter renders question documents for workers and assembles collected transcripts (Markdown, plain text)
package formatter

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"github.com/ryantate/typingpool-sub000/internal/models"
)

//go:embed question.html.tmpl
var questionTemplate string

var questionTmpl = template.Must(template.New("question").Parse(questionTemplate))

// QuestionPage is everything the question document shows or carries.
type QuestionPage struct {
	Title        string
	Instructions string
	AudioURL     string
	// Hidden are emitted as hidden inputs, sorted by name.
	Hidden map[string]string
}

type hiddenField struct {
	Name, Value string
}

// RenderQuestion produces the HTML document a worker transcribes from.
func RenderQuestion(page QuestionPage) ([]byte, error) {
	names := make([]string, 0, len(page.Hidden))
	for name := range page.Hidden {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]hiddenField, 0, len(names))
	for _, name := range names {
		fields = append(fields, hiddenField{Name: name, Value: page.Hidden[name]})
	}

	var buf bytes.Buffer
	err := questionTmpl.Execute(&buf, struct {
		QuestionPage
		Fields []hiddenField
	}{page, fields})
	if err != nil {
		return nil, fmt.Errorf("failed to render question: %w", err)
	}
	return buf.Bytes(), nil
}

// QuestionForRow builds the question page for one row, stashing its audio URL and project id.
func QuestionForRow(row *models.Row, title, instructions string) QuestionPage {
	return QuestionPage{
		Title:        title,
		Instructions: instructions,
		AudioURL:     row.AudioURL,
		Hidden: map[string]string{
			models.ColAudioURL:  row.AudioURL,
			models.ColProjectID: row.ProjectID,
		},
	}
}

// ExportTranscriptMarkdown assembles transcripts in row order, one section per chunk.
func ExportTranscriptMarkdown(title string, rows []*models.Row) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	done, pending := countTranscribed(rows)
	buf.WriteString(fmt.Sprintf("**Chunks**: %d transcribed, %d pending\n\n", done, pending))

	for i, row := range rows {
		name := chunkName(row)
		if row.Transcript == "" {
			buf.WriteString(fmt.Sprintf("## %d. %s\n\n_pending_\n\n", i+1, name))
			continue
		}
		buf.WriteString(fmt.Sprintf("## %d. %s\n\n", i+1, name))
		if row.Worker != "" {
			buf.WriteString(fmt.Sprintf("**Worker**: %s\n\n", row.Worker))
		}
		buf.WriteString(row.Transcript)
		buf.WriteString("\n\n")
	}

	return buf.Bytes(), nil
}

// ExportTranscriptText assembles transcripts in row order as plain text.
func ExportTranscriptText(title string, rows []*models.Row) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Transcript: %s\n", title))
	done, pending := countTranscribed(rows)
	buf.WriteString(fmt.Sprintf("Chunks: %d transcribed, %d pending\n\n", done, pending))

	for i, row := range rows {
		text := row.Transcript
		if text == "" {
			text = "[pending]"
		}
		buf.WriteString(fmt.Sprintf("%d. %s\n%s\n\n", i+1, chunkName(row), text))
	}

	return buf.Bytes(), nil
}

// WriteTranscript writes data to path via a temp file in the same directory.
func WriteTranscript(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

func countTranscribed(rows []*models.Row) (done, pending int) {
	for _, row := range rows {
		if row.Transcript != "" {
			done++
		} else {
			pending++
		}
	}
	return done, pending
}

func chunkName(row *models.Row) string {
	if row.AudioFile != "" {
		return row.AudioFile
	}
	return row.AudioURL
}
