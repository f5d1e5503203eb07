// Package mocks provides mock implementations of the clip pipeline's
// collaborators for testing.
package mocks

import (
	"context"
	"vlogclip/internal/captions"
	"vlogclip/internal/extractor"
	"vlogclip/internal/fetcher"
	"vlogclip/internal/progress"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of clipper.Fetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, ref, dest string, rep progress.Reporter) (*fetcher.Source, error) {
	args := m.Called(ctx, ref, dest, rep)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fetcher.Source), args.Error(1)
}

// MockExtractor is a mock implementation of clipper.Extractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, req extractor.Request) (extractor.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(extractor.Result), args.Error(1)
}

// MockMirror is a mock implementation of clipper.Mirror
type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Upload(ctx context.Context, localPath, name string) (string, error) {
	args := m.Called(ctx, localPath, name)
	return args.String(0), args.Error(1)
}

// MockCaptions is a mock implementation of captions.Provider
type MockCaptions struct {
	mock.Mock
}

func (m *MockCaptions) Captions(ctx context.Context, in captions.Input) (captions.Copy, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(captions.Copy), args.Error(1)
}

// MockCompleter is a mock implementation of captions.Completer
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}
