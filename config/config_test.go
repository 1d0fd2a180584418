package config

import (
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"PETSPRITE_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("PETSPRITE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":4000" || cfg.DefaultGroup != "demo" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ActivityHold != 3*time.Second {
		t.Fatalf("activity hold = %v, want 3s", cfg.ActivityHold)
	}
	if cfg.RedisAddr != "" || cfg.RedisPrefix != "petsprite" {
		t.Fatalf("unexpected redis defaults %+v", cfg)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("PETSPRITE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("PETSPRITE_REDIS_ADDR", "localhost:6379")
	t.Setenv("PETSPRITE_ACTIVITY_HOLD", "1500ms")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ActivityHold != 1500*time.Millisecond {
		t.Fatalf("activity hold = %v", cfg.ActivityHold)
	}
}

func TestServerValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Server
	}{
		{name: "empty addr", cfg: Server{HTTPAddr: " "}},
		{name: "negative hold", cfg: Server{HTTPAddr: ":1", ActivityHold: -time.Second}},
		{name: "negative db", cfg: Server{HTTPAddr: ":1", RedisDB: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadViewer(t *testing.T) {
	t.Setenv("PETSPRITE_GROUP", "kitchen")
	t.Setenv("PETSPRITE_SCALE", "2.5")

	cfg, err := LoadViewer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Group != "kitchen" || cfg.Scale != 2.5 {
		t.Fatalf("unexpected viewer config %+v", cfg)
	}

	t.Setenv("PETSPRITE_SCALE", "big")
	if _, err := LoadViewer(); err == nil {
		t.Fatal("expected error for bad scale")
	}
}

// os.Exit cannot be intercepted in-process, so Exitf runs in a subprocess.
func TestExitfExitsWithCode1(t *testing.T) {
	if os.Getenv("TEST_EXITF_SUBPROCESS") == "1" {
		Exitf("fatal: %s", "something broke")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfExitsWithCode1$")
	cmd.Env = append(os.Environ(), "TEST_EXITF_SUBPROCESS=1")
	var stderr strings.Builder
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected exit error, got %v", err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(stderr.String(), "fatal: something broke") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
