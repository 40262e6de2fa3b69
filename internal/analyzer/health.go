package analyzer

import (
	"context"

	"go.uber.org/zap"
)

// Prober reaches the service root.
type Prober interface {
	Root(ctx context.Context) (any, error)
}

// HealthCheck probes the service once and logs the outcome. It never fails
// the caller and does not touch any view state.
func HealthCheck(ctx context.Context, prober Prober, logger *zap.Logger) bool {
	body, err := prober.Root(ctx)
	if err != nil {
		logger.Error("API not reachable", zap.Error(err))
		return false
	}
	logger.Info("API OK", zap.Any("response", body))
	return true
}
