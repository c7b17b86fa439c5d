package directions

import (
	"context"
	"sync/atomic"

	"musallago/pkg/geo"
)

type mockRouteSource struct {
	FetchRouteFunc func(ctx context.Context, origin, dest geo.Point) (string, error)

	calls atomic.Int32
}

func (m *mockRouteSource) FetchRoute(ctx context.Context, origin, dest geo.Point) (string, error) {
	m.calls.Add(1)
	return m.FetchRouteFunc(ctx, origin, dest)
}
