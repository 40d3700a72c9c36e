package http

import (
	"github.com/labstack/echo/v4"

	"github.com/petclinic/auth-service/internal/infrastructure/http/handlers"
)

const (
	LivenessPath  = "/health"
	ReadinessPath = "/health/ready"
)

// RegisterProbes mounts the liveness and readiness probes on e. Both paths
// must be on the public allow-list.
func RegisterProbes(e *echo.Echo, checks ...handlers.Check) {
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(checks...)

	e.GET(LivenessPath, healthHandler.Liveness)       // liveness  – is the process alive?
	e.GET(ReadinessPath, healthDepsHandler.Readiness) // readiness – are dependencies up?
}
