package remote

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// MockRemote is a mock implementation of the Remote interface
type MockRemote struct {
	mock.Mock
}

// SearchCatalog mocks the SearchCatalog method
func (m *MockRemote) SearchCatalog(ctx context.Context, query string, page Pagination) ([]models.CatalogEntry, error) {
	args := m.Called(ctx, query, page)
	entries, _ := args.Get(0).([]models.CatalogEntry)
	return entries, args.Error(1)
}

// FetchRepoMetadata mocks the FetchRepoMetadata method
func (m *MockRemote) FetchRepoMetadata(ctx context.Context, owner, name string) (*models.RepoMetadata, error) {
	args := m.Called(ctx, owner, name)
	meta, _ := args.Get(0).(*models.RepoMetadata)
	return meta, args.Error(1)
}

// FetchFileTree mocks the FetchFileTree method
func (m *MockRemote) FetchFileTree(ctx context.Context, owner, name, branch string) ([]models.RemoteFile, error) {
	args := m.Called(ctx, owner, name, branch)
	files, _ := args.Get(0).([]models.RemoteFile)
	return files, args.Error(1)
}

// FetchRawFile mocks the FetchRawFile method
func (m *MockRemote) FetchRawFile(ctx context.Context, owner, name, branch, path string) ([]byte, error) {
	args := m.Called(ctx, owner, name, branch, path)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}
