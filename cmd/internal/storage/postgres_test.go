package storage

import "testing"

func TestPoolConfig_ZeroSizesKeepDSNSettings(t *testing.T) {
	pcfg, err := poolConfig(Config{URL: "postgres://u@localhost:5432/db?pool_min_conns=3&pool_max_conns=7"})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if pcfg.MinConns != 3 || pcfg.MaxConns != 7 {
		t.Fatalf("dsn pool sizes overridden: min=%d max=%d", pcfg.MinConns, pcfg.MaxConns)
	}
}

func TestPoolConfig_ExplicitSizesWin(t *testing.T) {
	pcfg, err := poolConfig(Config{
		URL:      "postgres://u@localhost:5432/db?pool_min_conns=3&pool_max_conns=7",
		MaxConns: 12,
		MinConns: 2,
	})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if pcfg.MinConns != 2 || pcfg.MaxConns != 12 {
		t.Fatalf("explicit pool sizes ignored: min=%d max=%d", pcfg.MinConns, pcfg.MaxConns)
	}
}

func TestPoolConfig_BadURL(t *testing.T) {
	if _, err := poolConfig(Config{URL: "postgres://u@localhost:5432/db?pool_max_conns=many"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
