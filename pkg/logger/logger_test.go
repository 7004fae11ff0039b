package logger

import (
	"context"
	"testing"
)

func TestInitAndReinit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Get() == nil {
		t.Fatal("Get returned nil after Init")
	}

	// A second Init must leave the logger usable.
	if err := Init(); err != nil {
		t.Fatalf("repeat Init: %v", err)
	}
	if Get() == nil {
		t.Fatal("Get returned nil after repeat Init")
	}

	if err := Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
}

func TestFieldsPassThrough(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "attributes of every kind",
		String("k", "v"), Int("n", 1), Bool("ok", true), Float64("f", 0.5))
	Get().Warn(ctx, "no attributes at all")
}

func TestNamedSubsystem(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	sub := Named("flusher")
	if sub == nil {
		t.Fatal("Named returned nil")
	}
	sub.Info(context.Background(), "named loggers share the sink")
}

func TestLevelNames(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// The empty name comes last so the level lands back on info.
	for _, name := range []string{"debug", "warn", "warning", "error", "info", ""} {
		if err := SetLevelString(name); err != nil {
			t.Errorf("SetLevelString(%q): %v", name, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("SetLevelString accepted an unknown level")
	}
}
