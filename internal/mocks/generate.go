// Package mocks provides mock implementations for testing the product import system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, ReserveNext, WaitForNotification, Heartbeat, Complete, Fail,
// UpdateProgress, SetTotalRows, Stats, List, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/jayClean/product-importer/internal/core JobRepository

// Generate mock for ProductRepository interface from internal/core package.
// This creates MockProductRepository with methods for all ProductRepository interface methods:
// Reconcile, Create, GetByID, GetBySKU, List, Update, SoftDelete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=product_repository_mock.go github.com/jayClean/product-importer/internal/core ProductRepository

// Generate mock for WebhookRepository interface from internal/core package.
// This creates MockWebhookRepository with methods for all WebhookRepository interface methods:
// Create, GetByID, List, ListEnabledByEvent, Update, Delete, RecordResult
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=webhook_repository_mock.go github.com/jayClean/product-importer/internal/core WebhookRepository

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, Exists, SetTTL, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/jayClean/product-importer/internal/core CacheRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailStalePendingJobs, DeleteOldJobs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/jayClean/product-importer/internal/core ReaperRepository
