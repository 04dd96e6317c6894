package learner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/viant/afs"
	"github.com/viant/morphein/pattern"
	"github.com/viant/morphein/store"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the optional tuning file inside the state directory
const ConfigFile = "config.yaml"

// Options tunes learning behavior; the zero value of any field falls back to
// its default so a partial config file is fine
type Options struct {
	ApplyThreshold float64 `yaml:"applyThreshold"`
	Debug          bool    `yaml:"debug"`
}

// DefaultOptions returns the default learning options
func DefaultOptions() Options {
	return Options{ApplyThreshold: pattern.ApplyThreshold}
}

// LoadOptions reads options from the state directory's config file; a missing
// or corrupt file degrades to defaults
func LoadOptions(stateDir string) Options {
	options := DefaultOptions()
	fs := afs.New()
	data, err := fs.DownloadWithURL(context.Background(), path.Join(stateDir, ConfigFile))
	if err != nil || len(data) == 0 {
		return options
	}
	var loaded Options
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return options
	}
	if loaded.ApplyThreshold > 0 && loaded.ApplyThreshold <= 1 {
		options.ApplyThreshold = loaded.ApplyThreshold
	}
	options.Debug = loaded.Debug
	return options
}

var debugLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

// debugf emits a diagnostic when debugging is enabled by option or by the
// environment, read at call time; it never alters control flow
func (l *Learner) debugf(format string, args ...interface{}) {
	if !l.options.Debug && os.Getenv(store.DebugEnv) == "" {
		return
	}
	debugLogger.Debug(fmt.Sprintf(format, args...))
}
