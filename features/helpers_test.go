package features

import (
	"testing"

	"github.com/rigcal/rigcal/internal/rigcalog"
	"github.com/rigcal/rigcal/rigcalconfig"
)

func testConfig() rigcalconfig.Config {
	cfg := rigcalconfig.Default()
	cfg.NumMatchThreads = 4
	return cfg
}

func testLogger(tb testing.TB) rigcalog.Logger {
	return rigcalog.NewTestLogger(tb)
}
