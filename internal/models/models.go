// package models defines the row and marker types for a transcription project
package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// Marker records whether an asset upload (or deletion) has completed.
type Marker string

const (
	MarkerDone      Marker = "done"
	MarkerNotDone   Marker = "not-done"
	MarkerUncertain Marker = "uncertain"
)

// ParseMarker converts a stored cell into a [Marker]. Empty cells read as [MarkerNotDone].
func ParseMarker(s string) (Marker, error) {
	switch Marker(s) {
	case "", MarkerNotDone:
		return MarkerNotDone, nil
	case MarkerDone:
		return MarkerDone, nil
	case MarkerUncertain:
		return MarkerUncertain, nil
	default:
		return "", fmt.Errorf("%w: unknown upload marker %q", shared.ErrMalformedReference, s)
	}
}

// Asset identifies one kind of remotely stored file belonging to a row.
type Asset int

const (
	AssetAudio Asset = iota
	AssetHTML
)

func (a Asset) String() string {
	switch a {
	case AssetAudio:
		return "audio"
	case AssetHTML:
		return "html"
	default:
		return ""
	}
}

// Column names of the project record, in canonical order.
const (
	ColAudioURL      = "audio_url"
	ColAudioFile     = "audio_file"
	ColProjectID     = "project_id"
	ColTranscript    = "transcript"
	ColWorker        = "worker"
	ColUnitID        = "unit_id"
	ColUnitExpiresAt = "unit_expires_at"
	ColUnitDuration  = "unit_duration"
	ColQuestionURL   = "question_url"
	ColAudioUploaded = "audio_uploaded"
	ColHTMLUploaded  = "html_uploaded"
)

// Columns lists every known column in the order they are written.
var Columns = []string{
	ColAudioURL,
	ColAudioFile,
	ColProjectID,
	ColTranscript,
	ColWorker,
	ColUnitID,
	ColUnitExpiresAt,
	ColUnitDuration,
	ColQuestionURL,
	ColAudioUploaded,
	ColHTMLUploaded,
}

// Row is one content item (an audio chunk) and its remote bookkeeping.
//
// AudioURL is the row key and must be unique within a project.
type Row struct {
	AudioURL      string
	AudioFile     string
	ProjectID     string
	Transcript    string
	Worker        string
	UnitID        string
	UnitExpiresAt time.Time
	UnitDuration  time.Duration
	QuestionURL   string
	AudioUploaded Marker
	HTMLUploaded  Marker

	// Extra holds columns this package does not know about, keyed by header name.
	Extra map[string]string
}

// Marker returns the upload marker for the given asset.
func (r *Row) Marker(a Asset) Marker {
	var m Marker
	if a == AssetHTML {
		m = r.HTMLUploaded
	} else {
		m = r.AudioUploaded
	}
	if m == "" {
		return MarkerNotDone
	}
	return m
}

// SetMarker sets the upload marker for the given asset.
func (r *Row) SetMarker(a Asset, m Marker) {
	if a == AssetHTML {
		r.HTMLUploaded = m
		return
	}
	r.AudioUploaded = m
}

// AssetURL returns the remote URL of the given asset.
func (r *Row) AssetURL(a Asset) string {
	if a == AssetHTML {
		return r.QuestionURL
	}
	return r.AudioURL
}

// AssignUnit records a newly created work unit on the row.
//
// Fails if the row already holds a different unit: a row never references two live units.
func (r *Row) AssignUnit(id string, expiresAt time.Time, duration time.Duration) error {
	if r.UnitID != "" && r.UnitID != id {
		return fmt.Errorf("row %s already assigned to unit %s", r.AudioURL, r.UnitID)
	}
	r.UnitID = id
	r.UnitExpiresAt = expiresAt
	r.UnitDuration = duration
	return nil
}

// ClearUnit forgets the row's work unit.
func (r *Row) ClearUnit() {
	r.UnitID = ""
	r.UnitExpiresAt = time.Time{}
	r.UnitDuration = 0
}

// FieldNames returns every column name present on the row (known columns plus extras).
func (r *Row) FieldNames() []string {
	names := make([]string, 0, len(Columns)+len(r.Extra))
	names = append(names, Columns...)
	for k := range r.Extra {
		names = append(names, k)
	}
	return names
}

// Get returns the serialized value of a column.
func (r *Row) Get(col string) string {
	switch col {
	case ColAudioURL:
		return r.AudioURL
	case ColAudioFile:
		return r.AudioFile
	case ColProjectID:
		return r.ProjectID
	case ColTranscript:
		return r.Transcript
	case ColWorker:
		return r.Worker
	case ColUnitID:
		return r.UnitID
	case ColUnitExpiresAt:
		if r.UnitExpiresAt.IsZero() {
			return ""
		}
		return r.UnitExpiresAt.UTC().Format(time.RFC3339)
	case ColUnitDuration:
		if r.UnitDuration == 0 {
			return ""
		}
		return strconv.FormatInt(int64(r.UnitDuration/time.Second), 10)
	case ColQuestionURL:
		return r.QuestionURL
	case ColAudioUploaded:
		return string(r.Marker(AssetAudio))
	case ColHTMLUploaded:
		return string(r.Marker(AssetHTML))
	default:
		return r.Extra[col]
	}
}

// Set parses and stores the serialized value of a column.
func (r *Row) Set(col, value string) error {
	switch col {
	case ColAudioURL:
		r.AudioURL = value
	case ColAudioFile:
		r.AudioFile = value
	case ColProjectID:
		r.ProjectID = value
	case ColTranscript:
		r.Transcript = value
	case ColWorker:
		r.Worker = value
	case ColUnitID:
		r.UnitID = value
	case ColUnitExpiresAt:
		if value == "" {
			r.UnitExpiresAt = time.Time{}
			return nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("%w: bad %s %q", shared.ErrMalformedReference, col, value)
		}
		r.UnitExpiresAt = t
	case ColUnitDuration:
		if value == "" {
			r.UnitDuration = 0
			return nil
		}
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad %s %q", shared.ErrMalformedReference, col, value)
		}
		r.UnitDuration = time.Duration(secs) * time.Second
	case ColQuestionURL:
		r.QuestionURL = value
	case ColAudioUploaded, ColHTMLUploaded:
		m, err := ParseMarker(value)
		if err != nil {
			return err
		}
		if col == ColAudioUploaded {
			r.AudioUploaded = m
		} else {
			r.HTMLUploaded = m
		}
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[col] = value
	}
	return nil
}
