package ports

import (
	"context"

	"github.com/kevin07696/newebpay-service/internal/domain"
)

// ProviderRepository reads the persisted provider configuration
type ProviderRepository interface {
	// FindByCode returns domain.ErrProviderNotFound when no provider has this code
	FindByCode(ctx context.Context, code string) (*domain.ProviderAccount, error)
}

// CredentialLookup resolves the active, secret-bearing credential of a provider
type CredentialLookup interface {
	FindCredential(ctx context.Context, code string) (*domain.ProviderCredential, error)
}
