package main

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_PollIntervalValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name:        "valid poll interval from flag",
			args:        []string{"-poll-interval", "5s"},
			expectError: false,
		},
		{
			name:        "zero poll interval from flag",
			args:        []string{"-poll-interval", "0s"},
			expectError: true,
			errorSubstr: "poll interval must be positive",
		},
		{
			name:        "negative poll interval from flag",
			args:        []string{"-poll-interval", "-5s"},
			expectError: true,
			errorSubstr: "poll interval must be positive",
		},
		{
			name:        "valid poll interval from env",
			envVars:     map[string]string{"TOPOLORD_POLL_INTERVAL": "5s"},
			expectError: false,
		},
		{
			name:        "zero poll interval from env",
			envVars:     map[string]string{"TOPOLORD_POLL_INTERVAL": "0s"},
			expectError: true,
			errorSubstr: "TOPOLORD_POLL_INTERVAL must be positive",
		},
		{
			name:        "invalid poll interval format from flag",
			args:        []string{"-poll-interval", "invalid"},
			expectError: true,
			errorSubstr: "invalid poll interval",
		},
		{
			name:        "invalid poll interval format from env",
			envVars:     map[string]string{"TOPOLORD_POLL_INTERVAL": "invalid"},
			expectError: true,
			errorSubstr: "invalid TOPOLORD_POLL_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			cfg, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				} else if cfg.PollInterval <= 0 {
					t.Errorf("expected positive poll interval, got %v", cfg.PollInterval)
				}
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.PollInterval != time.Minute {
		t.Errorf("expected default poll interval of 1m, got %v", cfg.PollInterval)
	}
	if cfg.Addr != defaultAddr {
		t.Errorf("expected default addr %s, got %s", defaultAddr, cfg.Addr)
	}
	if cfg.WebAssetsMode != "embedded" {
		t.Errorf("expected embedded web assets, got %s", cfg.WebAssetsMode)
	}
	if cfg.SnapshotKeep != defaultSnapshotKeep {
		t.Errorf("expected default snapshot keep %d, got %d", defaultSnapshotKeep, cfg.SnapshotKeep)
	}
}

func TestLoadConfig_WebAssetsModes(t *testing.T) {
	if _, err := LoadConfig([]string{"-web-assets", "fs"}); err == nil {
		t.Error("web-assets=fs without web-dir should fail")
	}

	cfg, err := LoadConfig([]string{"-web-assets", "fs", "-web-dir", "dist"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WebAssetsMode != "fs" || cfg.WebDir == "" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, err := LoadConfig([]string{"-web-assets", "bogus"}); err == nil {
		t.Error("unsupported web-assets mode should fail")
	}
}

func TestLoadConfig_AddrFromEnvPort(t *testing.T) {
	os.Setenv("TOPOLORD_PORT", "9999")
	defer os.Unsetenv("TOPOLORD_PORT")

	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("expected addr from TOPOLORD_PORT, got %s", cfg.Addr)
	}
}
