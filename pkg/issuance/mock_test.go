package issuance

import (
	"context"

	"github.com/capiscio/openbadges/pkg/fetch"
	"github.com/stretchr/testify/mock"
)

// MockImageFetcher is a mock implementation of fetch.ImageFetcher
type MockImageFetcher struct {
	mock.Mock
}

func (m *MockImageFetcher) Fetch(ctx context.Context, location string) (*fetch.Image, error) {
	args := m.Called(ctx, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fetch.Image), args.Error(1)
}
