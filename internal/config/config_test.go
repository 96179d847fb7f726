package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero copy block", func(c *Config) { c.CopyBlockSize = 0 }},
		{"non power of two copy block", func(c *Config) { c.CopyBlockSize = 384 }},
		{"zero transpose block", func(c *Config) { c.TransposeBlockSize = 0 }},
		{"non power of two transpose block", func(c *Config) { c.TransposeBlockSize = 100 }},
		{"zero absmax iterations", func(c *Config) { c.AbsmaxIterations = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestEffectiveWorkers(t *testing.T) {
	cfg := Default()
	if cfg.EffectiveWorkers() <= 0 {
		t.Errorf("EffectiveWorkers = %d, want positive", cfg.EffectiveWorkers())
	}
	cfg.Workers = 3
	if cfg.EffectiveWorkers() != 3 {
		t.Errorf("EffectiveWorkers = %d, want 3", cfg.EffectiveWorkers())
	}
}
