package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Stopper is a background component drained during graceful shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}

type StopFunc func(ctx context.Context) error

func (f StopFunc) Stop(ctx context.Context) error {
	return f(ctx)
}
