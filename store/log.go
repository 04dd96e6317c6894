package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/viant/afs"
	"github.com/viant/morphein/pattern"
)

// LogFile is the transformation log file name inside the state directory
const LogFile = "transformations.json"

// LogVersion is the on-disk document version
const LogVersion = "1.0"

// LogEntry records one observed transformation. Entries are append only:
// they are never mutated, only appended or bulk cleared.
type LogEntry struct {
	Timestamp   time.Time     `json:"timestamp"`
	BeforeCode  string        `json:"beforeCode"`
	AfterCode   string        `json:"afterCode"`
	OriginStage pattern.Stage `json:"layerId"`
	FilePath    string        `json:"filePath"`
}

type logDocument struct {
	Version string     `json:"version"`
	Entries []LogEntry `json:"entries"`
}

// TransformationLog is the durable, append-only record of transformations
// that cross-session learning replays
type TransformationLog struct {
	fs       afs.Service
	location string
}

// NewTransformationLog creates a log persisted under the given state directory
func NewTransformationLog(stateDir string) *TransformationLog {
	return &TransformationLog{
		fs:       afs.New(),
		location: path.Join(stateDir, LogFile),
	}
}

// Location returns the log's file location
func (l *TransformationLog) Location() string {
	return l.location
}

// Append adds an entry to the log
func (l *TransformationLog) Append(ctx context.Context, entry LogEntry) error {
	document := l.read(ctx)
	document.Entries = append(document.Entries, entry)
	return l.write(ctx, document)
}

// Entries returns all logged entries; a corrupt or missing log degrades to empty
func (l *TransformationLog) Entries(ctx context.Context) []LogEntry {
	return l.read(ctx).Entries
}

// EntriesSince returns entries recorded strictly after the given time
func (l *TransformationLog) EntriesSince(ctx context.Context, since time.Time) []LogEntry {
	var matched []LogEntry
	for _, entry := range l.read(ctx).Entries {
		if entry.Timestamp.After(since) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// Clear replaces the log with an empty-entries document
func (l *TransformationLog) Clear(ctx context.Context) error {
	return l.write(ctx, logDocument{Version: LogVersion, Entries: []LogEntry{}})
}

func (l *TransformationLog) read(ctx context.Context) logDocument {
	document := logDocument{Version: LogVersion}
	data, err := l.fs.DownloadWithURL(ctx, l.location)
	if err != nil || len(data) == 0 {
		return document
	}
	if err := json.Unmarshal(data, &document); err != nil {
		debugf("transformation log %s is corrupt: %v", l.location, err)
		return logDocument{Version: LogVersion}
	}
	return document
}

func (l *TransformationLog) write(ctx context.Context, document logDocument) error {
	document.Version = LogVersion
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transformation log: %w", err)
	}
	if err := l.fs.Upload(ctx, l.location, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write transformation log %s: %w", l.location, err)
	}
	return nil
}
