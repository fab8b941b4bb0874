package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/praghav/modelgate/internal/api/response"
	"github.com/praghav/modelgate/internal/provider"
)

const probeTimeout = 5 * time.Second

type providerStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

// NewProvidersHandler returns an http.HandlerFunc for GET /providers. Health
// probes fan out concurrently; the response preserves registration order.
func NewProvidersHandler(registry *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		providers := registry.All()
		statuses := make([]providerStatus, len(providers))

		var wg sync.WaitGroup
		for i, p := range providers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				statuses[i] = providerStatus{Name: p.Name(), Healthy: p.IsHealthy(ctx)}
			}()
		}
		wg.Wait()

		response.JSON(w, statuses)
	}
}
