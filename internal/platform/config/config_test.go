package config

import (
	"os"
	"testing"
	"time"
)

func TestEnvironment(t *testing.T) {
	// Variables are read with the full prefix first, then by their tag alone.
	os.Setenv("POLLR_STORAGE_STORAGE_BUCKET", "bolt")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	os.Setenv("STATS_INTERVAL", "10s")
	os.Setenv("ADMIN_KEY", "operator")
	defer os.Unsetenv("ADMIN_KEY")
	defer os.Unsetenv("POLLR_STORAGE_STORAGE_BUCKET")
	defer os.Unsetenv("AWS_SECRET_ACCESS_KEY")
	defer os.Unsetenv("STATS_INTERVAL")

	cfg, err := Environment()
	if err != nil {
		t.Fatalf("Failed to process environment : %s", err)
	}

	if cfg.Storage.Bucket != "bolt" {
		t.Fatalf("Wrong storage bucket : got %q, wanted %q", cfg.Storage.Bucket, "bolt")
	}

	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Fatalf("Wrong shutdown timeout : %s", cfg.Server.ShutdownTimeout)
	}

	if cfg.AWS.SecretAccessKey != "secret" {
		t.Fatalf("Secret not read from unprefixed variable")
	}

	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Fatalf("Wrong max body bytes : %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Server.AdminKey != "operator" {
		t.Fatalf("Wrong admin key : %q", cfg.Server.AdminKey)
	}

	if cfg.Jobs.StatsInterval != 10*time.Second {
		t.Fatalf("Wrong stats interval : %s", cfg.Jobs.StatsInterval)
	}
	if cfg.Jobs.HealthInterval != time.Minute {
		t.Fatalf("Wrong health interval : %s", cfg.Jobs.HealthInterval)
	}

	safe := SafeConfig(*cfg)
	if safe.AWS.SecretAccessKey == "secret" {
		t.Fatalf("Secret not masked")
	}
	if safe.Server.AdminKey == "operator" {
		t.Fatalf("Admin key not masked")
	}
	if cfg.AWS.SecretAccessKey != "secret" {
		t.Fatalf("Masking modified the original config")
	}
}
