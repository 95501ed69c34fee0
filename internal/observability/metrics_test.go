package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesModuleMetrics(t *testing.T) {
	RecordModuleLoad(10*time.Millisecond, "success")
	RecordModuleUnload(true)
	RecordEviction()
	RecordTierMove("cold", "hot", time.Millisecond, true)
	SetHotTokens(2000, 3000)
	SetLoadedModules(2)
	SetRegisteredModules(5)
	RecordHandlerFailure("module.loaded")

	server := httptest.NewServer(MetricsHandler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	output := string(body)
	for _, name := range []string{
		"cortex_module_load_total",
		"cortex_module_load_duration_seconds",
		"cortex_module_unload_total",
		"cortex_module_eviction_total",
		"cortex_tier_move_total",
		"cortex_hot_tokens_used 2000",
		"cortex_hot_tokens_limit 3000",
		"cortex_loaded_modules 2",
		"cortex_registered_modules 5",
		"cortex_event_handler_failures_total",
	} {
		assert.Contains(t, output, name)
	}
}

func TestEnsureRegisteredIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		EnsureRegistered()
		EnsureRegistered()
	})
}
