package logger

import "testing"

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected info default, got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected console default, got %q", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamps on by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Level: "verbose", Format: "console"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid level to fail")
	}

	cfg = Config{Level: "debug", Format: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid format to fail")
	}

	cfg = Config{Level: "debug", Format: "json"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two")
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected map %v", m)
	}

	// Odd trailing key is dropped
	m = Fields("a", 1, "dangling")
	if len(m) != 1 {
		t.Errorf("expected dangling key dropped, got %v", m)
	}
}

func TestWithComponent(t *testing.T) {
	l := NewDefault("test")
	tagged := l.WithComponent("hub")
	if tagged == nil || tagged == l {
		t.Error("expected a derived logger")
	}
}
