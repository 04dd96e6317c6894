package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/viant/afs"
)

// SessionFile holds the cross-session watermark inside the state directory
const SessionFile = "session.json"

// Session persists the cross-session learning watermark so each log entry
// contributes exactly once even across restarts
type Session struct {
	fs       afs.Service
	location string

	LastLoadTime time.Time `json:"lastLoadTime"`
}

// NewSession creates a session persisted under the given state directory
func NewSession(stateDir string) *Session {
	return &Session{
		fs:       afs.New(),
		location: path.Join(stateDir, SessionFile),
	}
}

// Load reads the persisted watermark; missing or corrupt state degrades to
// the zero time, which replays the whole log once
func (s *Session) Load(ctx context.Context) {
	s.LastLoadTime = time.Time{}
	data, err := s.fs.DownloadWithURL(ctx, s.location)
	if err != nil || len(data) == 0 {
		return
	}
	var decoded struct {
		LastLoadTime time.Time `json:"lastLoadTime"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		debugf("session state %s is corrupt: %v", s.location, err)
		return
	}
	s.LastLoadTime = decoded.LastLoadTime
}

// Save persists the watermark
func (s *Session) Save(ctx context.Context) error {
	data, err := json.MarshalIndent(struct {
		LastLoadTime time.Time `json:"lastLoadTime"`
	}{s.LastLoadTime}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := s.fs.Upload(ctx, s.location, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save session state %s: %w", s.location, err)
	}
	return nil
}
