package util

import (
	"github.com/GoBucketStore/go-bucket-store/models"
)

// Provides utility types and functions for tests

// ------------------------------------

type MockLogger struct {
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(msg string, args ...any) {
	// Mock implementation - no-op
}

func (m *MockLogger) Info(msg string, args ...any) {
	// Mock implementation - no-op
}

func (m *MockLogger) Warn(msg string, args ...any) {
	// Mock implementation - no-op
}

func (m *MockLogger) Error(msg string, args ...any) {
	// Mock implementation - no-op
}

// ------------------------------------

type mockPlugin struct{}

func NewMockPlugin() *mockPlugin {
	return &mockPlugin{}
}

func (m *mockPlugin) Metadata() models.PluginMetadata {
	return models.PluginMetadata{
		ID:          "Mock Plugin",
		Version:     "0.0.1",
		Description: "A mock plugin.",
	}
}

func (m *mockPlugin) Config() any {
	return nil
}

func (m *mockPlugin) Init(ctx *models.PluginContext) error {
	return nil
}

func (m *mockPlugin) Close() error {
	return nil
}

// ------------------------------------
