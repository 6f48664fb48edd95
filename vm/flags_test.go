package vm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ember.toml")
	content := `
trace_reload = false
identity_reload = true
reload_every = 100
reload_every_optimized = false
history_path = "reloads.db"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	flags, err := LoadFlags(path)
	if err != nil {
		t.Fatal(err)
	}
	if flags.TraceReload {
		t.Error("TraceReload should be false")
	}
	if !flags.IdentityReload {
		t.Error("IdentityReload should be true")
	}
	if flags.ReloadEveryN != 100 {
		t.Errorf("ReloadEveryN = %d, want 100", flags.ReloadEveryN)
	}
	if flags.ReloadEveryOptimized {
		t.Error("ReloadEveryOptimized should be false")
	}
	if flags.HistoryPath != "reloads.db" {
		t.Errorf("HistoryPath = %q, want reloads.db", flags.HistoryPath)
	}
}

func TestLoadFlagsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ember.toml")
	if err := os.WriteFile(path, []byte("trace_reload = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	flags, err := LoadFlags(path)
	if err != nil {
		t.Fatal(err)
	}
	// Unset keys keep their defaults.
	if !flags.ReloadEveryOptimized {
		t.Error("ReloadEveryOptimized should default to true")
	}
	if flags.ReloadEveryN != 0 {
		t.Errorf("ReloadEveryN = %d, want 0", flags.ReloadEveryN)
	}
}

func TestLoadFlagsMissingFile(t *testing.T) {
	if _, err := LoadFlags(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestMaybeReloadFromStackOverflowCheck(t *testing.T) {
	flags := DefaultFlags()
	flags.TraceReload = false
	flags.ReloadEveryN = 3
	flags.ReloadEveryOptimized = false
	iso := NewIsolateWithFlags(flags)

	reloads := 0
	loadInitial(t, iso, "test:app", mainReturning(SmallInt(4)))
	iso.SetLibraryTagHandler(func(iso *Isolate, tag LibraryTag, url string) error {
		reloads++
		lib := iso.RegisterLibrary(url)
		mainReturning(SmallInt(4))(iso, lib)
		iso.SetRootLibrary(lib)
		return nil
	})

	for i := 0; i < 9; i++ {
		if err := iso.MaybeReloadFromStackOverflowCheck(); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	if reloads != 3 {
		t.Errorf("reloads = %d, want one every 3 checks", reloads)
	}
}
