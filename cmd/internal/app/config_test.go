package app

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected defaults: addr=%q format=%q", cfg.HTTPAddr, cfg.LogFormat)
	}
	if cfg.Storage.URL != "" || !cfg.Storage.AutoMigrate || cfg.Storage.MaxConns != 10 {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PARTSBIN_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("PARTSBIN_LOG_FORMAT", "pretty")
	t.Setenv("PARTSBIN_HTTP_READ_TIMEOUT", "3s")
	t.Setenv("PARTSBIN_DATABASE_URL", "sqlite:/tmp/partsbin.db")
	t.Setenv("PARTSBIN_DB_MAX_CONNS", "bogus")
	t.Setenv("PARTSBIN_CORS_ALLOWED_ORIGINS", " https://a.example.com, ,http://127.0.0.1:* ")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.LogFormat != "pretty" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.ReadTimeout != 3*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
	if cfg.Storage.URL != "sqlite:/tmp/partsbin.db" || cfg.Storage.MaxConns != 10 {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	want := []string{"https://a.example.com", "http://127.0.0.1:*"}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Fatalf("origins=%v want %v", cfg.CORSAllowedOrigins, want)
	}
}
