package mocks

import (
	"github.com/stretchr/testify/mock"

	"reportsigner/internal/model"
	"reportsigner/internal/storage"
)

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Save(content []byte, filename string) (*storage.SavedFile, error) {
	args := m.Called(content, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.SavedFile), args.Error(1)
}

func (m *MockFileStore) Read(relPath string) ([]byte, error) {
	args := m.Called(relPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFileStore) Locate(filename string) (string, error) {
	args := m.Called(filename)
	return args.String(0), args.Error(1)
}

func (m *MockFileStore) Exists(relPath string) bool {
	args := m.Called(relPath)
	return args.Bool(0)
}

func (m *MockFileStore) Delete(relPath string) error {
	args := m.Called(relPath)
	return args.Error(0)
}

func (m *MockFileStore) Stats() (model.CleanupStats, error) {
	args := m.Called()
	return args.Get(0).(model.CleanupStats), args.Error(1)
}

func (m *MockFileStore) BasePath() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockFileStore) TrashPath() string {
	args := m.Called()
	return args.String(0)
}
