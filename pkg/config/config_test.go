package config

import (
	"testing"
	"time"
)

func TestLoadRequiresSigningKey(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SIGNING_KEY is absent")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.SigningKey != "test-key" {
		t.Errorf("signing key = %q", cfg.JWT.SigningKey)
	}
	if cfg.DB.Port != "5432" || cfg.DB.SSLMode != "disable" {
		t.Errorf("db defaults = %s/%s", cfg.DB.Port, cfg.DB.SSLMode)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("server port = %q", cfg.Server.Port)
	}
	if cfg.DB.ConnMaxLifetime != time.Hour {
		t.Errorf("conn max lifetime = %v", cfg.DB.ConnMaxLifetime)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "test-key")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("DB_CONN_MAX_LIFETIME", "30m")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB.Host != "db.internal" {
		t.Errorf("db host = %q", cfg.DB.Host)
	}
	if cfg.DB.MaxOpenConns != 25 {
		t.Errorf("max open conns = %d", cfg.DB.MaxOpenConns)
	}
	if cfg.DB.ConnMaxLifetime != 30*time.Minute {
		t.Errorf("conn max lifetime = %v", cfg.DB.ConnMaxLifetime)
	}
	if cfg.Server.Env != "production" {
		t.Errorf("env = %q", cfg.Server.Env)
	}
}
