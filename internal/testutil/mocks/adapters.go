package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	adapterports "github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/domain"
)

// MockRefundGateway is a mock implementation of ports.RefundGateway
type MockRefundGateway struct {
	mock.Mock
}

func (m *MockRefundGateway) Cancel(ctx context.Context, cred *domain.ProviderCredential, req *adapterports.RefundRequest) (*adapterports.RefundResult, error) {
	args := m.Called(ctx, cred, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*adapterports.RefundResult), args.Error(1)
}

// MockSecretManager is a mock implementation of ports.SecretManagerAdapter
type MockSecretManager struct {
	mock.Mock
}

func (m *MockSecretManager) GetSecret(ctx context.Context, path string) (*adapterports.Secret, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*adapterports.Secret), args.Error(1)
}

func (m *MockSecretManager) PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (string, error) {
	args := m.Called(ctx, path, value, metadata)
	return args.String(0), args.Error(1)
}
