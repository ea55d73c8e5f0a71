package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FTPINDEXD_NETWORK", "FTPINDEXD_PORT", "FTPINDEXD_MAX_SCAN_TASKS", "FTPINDEXD_MAX_INDEX_TASKS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresNetwork(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail without FTPINDEXD_NETWORK")
	}
}

func TestLoadRejectsInvalidCIDR(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTPINDEXD_NETWORK", "not-a-cidr")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load to reject an invalid CIDR")
	}
}

func TestLoadRejectsNonPositiveTaskLimits(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTPINDEXD_NETWORK", "10.0.0.0/24")
	t.Setenv("FTPINDEXD_MAX_SCAN_TASKS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load to reject a non-positive MAX_SCAN_TASKS")
	}
	t.Setenv("FTPINDEXD_MAX_SCAN_TASKS", "8")
	t.Setenv("FTPINDEXD_MAX_INDEX_TASKS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load to reject a non-positive MAX_INDEX_TASKS")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTPINDEXD_NETWORK", "10.0.0.0/24")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != 21 || c.User != "anonymous" || c.MaxScanTasks != 64 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if len(c.SoftSignals) != 2 || c.SoftSignals[0] != "INT" || c.SoftSignals[1] != "TERM" {
		t.Fatalf("unexpected default SoftSignals: %v", c.SoftSignals)
	}
}

func TestLoadReadsPasswdAndSoftSignals(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTPINDEXD_NETWORK", "10.0.0.0/24")
	t.Setenv("FTPINDEXD_PASSWD", "s3cret")
	t.Setenv("FTPINDEXD_SOFT_SIGNALS", "int, hup")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Pass != "s3cret" {
		t.Fatalf("expected Pass from FTPINDEXD_PASSWD, got %q", c.Pass)
	}
	if len(c.SoftSignals) != 2 || c.SoftSignals[0] != "INT" || c.SoftSignals[1] != "HUP" {
		t.Fatalf("unexpected SoftSignals: %v", c.SoftSignals)
	}
}
