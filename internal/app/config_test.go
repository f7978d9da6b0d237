package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.LedgerSourceTimeout)
	require.Equal(t, 3*time.Second, cfg.LedgerEntityTimeout)
	require.Equal(t, "ledger.statement", cfg.LedgerNotifyChannel)
	require.Equal(t, 5, cfg.WorkerConcurrency)
	require.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRefreshEntities(t *testing.T) {
	t.Setenv("LEDGER_REFRESH_CRON", "@every 10m")
	t.Setenv("LEDGER_REFRESH_ENTITIES", "customer:1,Vendor:7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	refs, err := cfg.RefreshEntities()
	require.NoError(t, err)
	require.Equal(t, []reconcile.EntityRef{
		{Kind: reconcile.KindCustomer, ID: 1},
		{Kind: reconcile.KindVendor, ID: 7},
	}, refs)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"LEDGER_SOURCE_TIMEOUT":   "0s",
		"LEDGER_ENTITY_TIMEOUT":   "-1s",
		"WORKER_CONCURRENCY":      "0",
		"LEDGER_REFRESH_ENTITIES": "partner:3",
		"PG_DSN":                  " ",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv("LEDGER_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("LEDGER_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
