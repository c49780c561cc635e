package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "disabled metrics", config: Config{Enabled: false}},
		{name: "enabled metrics without server", config: Config{Enabled: true, Addr: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, err := NewCollector(tt.config)
			require.NoError(t, err)
			assert.NotNil(t, collector)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.NoError(t, collector.Shutdown(ctx))
		})
	}
}

func TestDisabledCollectorRecordMethodsAreNoOps(t *testing.T) {
	collector, err := NewCollector(Config{Enabled: false})
	require.NoError(t, err)

	collector.RecordTaskRun("build", "completed", time.Second)
	collector.RecordExtensionActivation("acme.ext", "activated")
	collector.RecordBroadcastMessage("cursor_update")
	collector.RecordDiagnosticsPush("lsp")

	assert.NoError(t, collector.Shutdown(context.Background()))
}

func TestEnabledCollectorRecordMethodsDoNotPanic(t *testing.T) {
	collector, err := NewCollector(Config{Enabled: true})
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = collector.Shutdown(ctx)
	}()

	collector.RecordTaskRun("build", "completed", 250*time.Millisecond)
	collector.RecordTaskRun("build", "failed", 10*time.Millisecond)
	collector.RecordExtensionActivation("acme.ext", "activated")
	collector.RecordBroadcastMessage("cursor_update")
	collector.RecordDiagnosticsPush("build")
}
