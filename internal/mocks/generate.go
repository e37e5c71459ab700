// Package mocks provides mock implementations for testing the punchd services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the repository ports in internal/core. To regenerate after interface
// changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockAccountRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=account_repository_mock.go github.com/punchd-io/punchd/internal/core AccountRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=batch_repository_mock.go github.com/punchd-io/punchd/internal/core BatchRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=audit_repository_mock.go github.com/punchd-io/punchd/internal/core AuditRepository
