package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Fatalf("redis url = %q", cfg.RedisURL)
	}
	if cfg.QueueName != "verifier:frames" {
		t.Fatalf("queue name = %q", cfg.QueueName)
	}
	if cfg.StorageDriver != "bolt" {
		t.Fatalf("storage driver = %q", cfg.StorageDriver)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Fatalf("concurrency = %d", cfg.WorkerConcurrency)
	}
	if cfg.BlurThreshold != 120.0 || cfg.GlareThreshold != 0.18 {
		t.Fatalf("quality thresholds = %v / %v", cfg.BlurThreshold, cfg.GlareThreshold)
	}
	if cfg.RectifyOutputWidth != 1200 || cfg.MatchWidth != 800 {
		t.Fatalf("geometry = %d / %d", cfg.RectifyOutputWidth, cfg.MatchWidth)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6380")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("BLUR_THRESHOLD", "95.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RedisURL != "redis://cache:6380" {
		t.Fatalf("redis url = %q", cfg.RedisURL)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Fatalf("concurrency = %d", cfg.WorkerConcurrency)
	}
	if cfg.BlurThreshold != 95.5 {
		t.Fatalf("blur threshold = %v", cfg.BlurThreshold)
	}
}

func TestLoadConfigMalformedValueFallsBack(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Fatalf("concurrency = %d, want default", cfg.WorkerConcurrency)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"postgres without url", func(c *Config) { c.StorageDriver = "postgres"; c.DatabaseURL = "" }, true},
		{"postgres with url", func(c *Config) { c.StorageDriver = "postgres"; c.DatabaseURL = "postgres://localhost/v" }, false},
		{"unknown driver", func(c *Config) { c.StorageDriver = "sqlite" }, true},
		{"zero concurrency", func(c *Config) { c.WorkerConcurrency = 0 }, true},
		{"excessive concurrency", func(c *Config) { c.WorkerConcurrency = 100 }, true},
		{"glare threshold above one", func(c *Config) { c.GlareThreshold = 1.5 }, true},
		{"tiny match width", func(c *Config) { c.MatchWidth = 10 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("validate error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
