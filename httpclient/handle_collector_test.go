package httpclient

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCollector(t *testing.T) {
	srv := newTestBackend(t)
	exec := NewMultiHandleExecutor()
	defer exec.Close()

	c := NewHandleCollector(exec, "orders")

	t.Run("given no handles, then only reports the handle count", func(t *testing.T) {
		assert.Equal(t, 1, testutil.CollectAndCount(c))
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP orders_http_client_handles Number of cached transport handles.
# TYPE orders_http_client_handles gauge
orders_http_client_handles 0
`), "orders_http_client_handles"))
	})

	t.Run("given a used handle, then reports its calls", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := exec.Execute(context.Background(), srv.URL+"/items", callOpts(MethodGet))
			require.NoError(t, err)
		}

		assert.Equal(t, 4, testutil.CollectAndCount(c))
		assert.Equal(t, 1, testutil.CollectAndCount(c, "orders_http_client_handle_calls_total"))

		expected := `
# HELP orders_http_client_handle_calls_total Calls routed through a handle.
# TYPE orders_http_client_handle_calls_total counter
orders_http_client_handle_calls_total{key="` + srv.URL + `"} 2
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "orders_http_client_handle_calls_total"))
	})

	t.Run("given a registry, then registers cleanly", func(t *testing.T) {
		reg := prometheus.NewPedanticRegistry()
		require.NoError(t, reg.Register(c))

		n, err := testutil.GatherAndCount(reg)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}
