package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryantate/typingpool-sub000/internal/formatter"
	"github.com/ryantate/typingpool-sub000/internal/models"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// ImportChunks copies each local audio file into the project's audio directory under a unique
// name and appends a row for it. The row's audio URL is where the file will be uploaded.
//
// Files are imported in argument order, which is the transcript order.
func (e *ProjectEngine) ImportChunks(ctx context.Context, files []string, progress chan<- ProgressUpdate) (*ImportResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no audio files given", shared.ErrMissingArgument)
	}
	if e.settings.ProjectID == "" {
		return nil, fmt.Errorf("%w: project id", shared.ErrMissingConfig)
	}

	rows, err := e.rows.Read()
	if err != nil {
		return nil, rowsErr("import", err)
	}
	if err := os.MkdirAll(e.settings.AudioDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	result := &ImportResult{}
	for i, src := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		name := chunkName(src)
		if err := copyFile(src, filepath.Join(e.settings.AudioDir, name)); err != nil {
			return result, err
		}
		rows = append(rows, &models.Row{
			AudioURL:      e.storage.URLForName(name),
			AudioFile:     name,
			ProjectID:     e.settings.ProjectID,
			AudioUploaded: models.MarkerNotDone,
			HTMLUploaded:  models.MarkerNotDone,
		})
		result.AudioFiles = append(result.AudioFiles, name)
		e.sendProgress(progress, importUpdate(i+1, len(files), name))
	}

	if err := e.rows.Write(rows, nil); err != nil {
		return result, rowsErr("import", err)
	}
	e.logger.Info("imported audio", "files", len(result.AudioFiles))
	return result, nil
}

// ExportTranscript assembles the collected transcripts as "md" or "txt".
func (e *ProjectEngine) ExportTranscript(format string) ([]byte, error) {
	rows, err := e.rows.Read()
	if err != nil {
		return nil, rowsErr("transcript", err)
	}
	title := e.settings.Policy.Title
	if title == "" {
		title = e.settings.ProjectID
	}

	switch format {
	case "", "md", "markdown":
		return formatter.ExportTranscriptMarkdown(title, rows)
	case "txt", "text":
		return formatter.ExportTranscriptText(title, rows)
	default:
		return nil, fmt.Errorf("%w: transcript format %q", shared.ErrInvalidArgument, format)
	}
}

// chunkName turns "dir/interview 01.mp3" into "interview-01.<uuid>.mp3".
func chunkName(src string) string {
	ext := filepath.Ext(src)
	base := strings.TrimSuffix(filepath.Base(src), ext)
	base = strings.Join(strings.Fields(base), "-")
	if base == "" {
		base = "chunk"
	}
	return fmt.Sprintf("%s.%s%s", base, shared.GenerateID(), strings.ToLower(ext))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
