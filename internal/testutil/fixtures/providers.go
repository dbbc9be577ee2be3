package fixtures

import "github.com/kevin07696/newebpay-service/internal/domain"

// Test credential material. HashKey is 32 bytes (AES-256), HashIV 16 bytes.
const (
	TestMerchantID = "MS1"
	TestHashKey    = "0123456789ABCDEF0123456789ABCDEF"
	TestHashIV     = "0123456789ABCDEF"
	TestKeyPath    = "newebpay/MS1/hash_key"
	TestIVPath     = "newebpay/MS1/hash_iv"
)

// NewCredential returns a complete test-mode credential with credit card enabled
func NewCredential() *domain.ProviderCredential {
	return domain.NewProviderCredential(domain.ProviderCodeNewebPay, TestMerchantID, TestHashKey, TestHashIV)
}

// ProviderAccountBuilder provides fluent API for building provider rows.
type ProviderAccountBuilder struct {
	account *domain.ProviderAccount
}

// NewProviderAccount creates an active test-mode account whose secrets live at TestKeyPath/TestIVPath
func NewProviderAccount() *ProviderAccountBuilder {
	return &ProviderAccountBuilder{
		account: &domain.ProviderAccount{
			Code:        domain.ProviderCodeNewebPay,
			MerchantID:  TestMerchantID,
			HashKeyPath: TestKeyPath,
			HashIVPath:  TestIVPath,
			TestMode:    true,
			Active:      true,
			Credit:      true,
		},
	}
}

func (b *ProviderAccountBuilder) WithCode(code string) *ProviderAccountBuilder {
	b.account.Code = code
	return b
}

func (b *ProviderAccountBuilder) Inactive() *ProviderAccountBuilder {
	b.account.Active = false
	return b
}

func (b *ProviderAccountBuilder) WithHashIVPath(path string) *ProviderAccountBuilder {
	b.account.HashIVPath = path
	return b
}

func (b *ProviderAccountBuilder) Build() *domain.ProviderAccount {
	return b.account
}
