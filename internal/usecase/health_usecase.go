package usecase

import (
	"context"
	"time"
)

type HealthUsecase interface {
	Check(ctx context.Context) map[string]string
}

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthUsecase struct {
	deps map[string]Pinger
}

// NewHealthUsecase reports "ok" plus one entry per named dependency. Nil
// dependencies are reported as "disabled".
func NewHealthUsecase(deps map[string]Pinger) HealthUsecase {
	return &healthUsecase{deps: deps}
}

func (u *healthUsecase) Check(ctx context.Context) map[string]string {
	result := map[string]string{
		"status": "ok",
	}
	for name, dep := range u.deps {
		if dep == nil {
			result[name] = "disabled"
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			result[name] = "unavailable"
			result["status"] = "degraded"
			continue
		}
		result[name] = "ok"
	}
	return result
}
