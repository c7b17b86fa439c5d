package places

import (
	"context"
	"sync/atomic"

	"musallago/pkg/model"
	"musallago/pkg/request"
)

// mockSource is a remote.PlaceSource driven by function fields.
type mockSource struct {
	FetchAllPlacesFunc func(ctx context.Context) ([]model.Place, error)
	PlaceDetailFunc    func(ctx context.Context, id string) (*model.Place, error)

	fetchCalls atomic.Int32
}

func (m *mockSource) FetchAllPlaces(ctx context.Context) ([]model.Place, error) {
	m.fetchCalls.Add(1)
	if m.FetchAllPlacesFunc != nil {
		return m.FetchAllPlacesFunc(ctx)
	}
	return nil, nil
}

func (m *mockSource) PlaceDetail(ctx context.Context, id string) (*model.Place, error) {
	if m.PlaceDetailFunc != nil {
		return m.PlaceDetailFunc(ctx, id)
	}
	return nil, errOffline
}

var errOffline = &request.NetworkError{Kind: request.KindUnreachable, Provider: "supabase"}
