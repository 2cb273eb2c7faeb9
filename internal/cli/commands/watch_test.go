package commands

import (
	"testing"
)

func TestWatchCommand_Creation(t *testing.T) {
	cmd := NewWatchCommand("test")

	if cmd == nil {
		t.Fatal("Expected watch command to be created")
	}
	if cmd.Short == "" {
		t.Error("Expected Short description to be set")
	}
	if cmd.Long == "" {
		t.Error("Expected Long description to be set")
	}
}

func TestWatchCommand_Flags(t *testing.T) {
	cmd := NewWatchCommand("test")

	for _, name := range []string{"run", "clear", "debounce", "poll", "poll-interval", "link-flags", "clear-cache", "cache-dir", "target"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag to exist", name)
		}
	}

	if f := cmd.Flags().Lookup("debounce"); f.DefValue != "300" {
		t.Errorf("expected default debounce 300, got %s", f.DefValue)
	}
	if f := cmd.Flags().Lookup("poll-interval"); f.DefValue != "1000" {
		t.Errorf("expected default poll-interval 1000, got %s", f.DefValue)
	}
	if f := cmd.Flags().Lookup("run"); f.DefValue != "false" {
		t.Errorf("expected --run to default off, got %s", f.DefValue)
	}
}

func TestWatchCommand_RequiresAtLeastOneArg(t *testing.T) {
	cmd := NewWatchCommand("test")
	if err := cmd.Args(cmd, []string{}); err == nil {
		t.Error("expected an error when no source file is given")
	}
}

func TestWatchCommand_CustomFlags(t *testing.T) {
	cmd := NewWatchCommand("test")
	cmd.Flags().Set("debounce", "250")
	cmd.Flags().Set("poll", "true")

	if got := cmd.Flags().Lookup("debounce").Value.String(); got != "250" {
		t.Errorf("expected debounce 250, got %s", got)
	}
	if got := cmd.Flags().Lookup("poll").Value.String(); got != "true" {
		t.Errorf("expected poll true, got %s", got)
	}
}

func BenchmarkWatchCommand_Creation(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewWatchCommand("test")
	}
}
