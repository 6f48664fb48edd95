package vm

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Flags configures the reload engine. An isolate takes a Flags value at
// creation; flags may also be loaded from an ember.toml file.
type Flags struct {
	// TraceReload prints human-readable reload progress to the runtime
	// log.
	TraceReload bool `toml:"trace_reload"`

	// IdentityReload enables the stricter accounting that expects a
	// reload of identical sources to produce the same class and library
	// counts. Mismatches are logged, not promoted to errors.
	IdentityReload bool `toml:"identity_reload"`

	// ReloadEveryN triggers a reload every N stack-overflow checks. A
	// fuzzing aid; zero disables it.
	ReloadEveryN int `toml:"reload_every"`

	// ReloadEveryOptimized restricts the ReloadEveryN trigger to frames
	// running optimized code.
	ReloadEveryOptimized bool `toml:"reload_every_optimized"`

	// HistoryPath is the path of a SQLite reload journal. The isolate does
	// not read it: reload outcomes are journaled only to a history attached
	// with SetReloadHistory.
	HistoryPath string `toml:"history_path"`
}

// DefaultFlags returns the default configuration.
func DefaultFlags() *Flags {
	return &Flags{
		TraceReload:          true,
		ReloadEveryOptimized: true,
	}
}

// LoadFlags reads flags from a TOML file, on top of the defaults.
func LoadFlags(path string) (*Flags, error) {
	flags := DefaultFlags()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flags file: %w", err)
	}
	if err := toml.Unmarshal(data, flags); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return flags, nil
}
