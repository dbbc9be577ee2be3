package domain

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/newebpay-service/pkg/security"
)

// ProviderCodeNewebPay is the provider code stored on NewebPay transactions
const ProviderCodeNewebPay = "newebpay"

// ProviderCredential is the per-account NewebPay configuration.
// HashKey and HashIV are shared secrets and must never be logged in plaintext.
type ProviderCredential struct {
	Code       string
	MerchantID string
	HashKey    string
	HashIV     string
	TestMode   bool

	// Enabled MPG payment methods
	Credit  bool
	WebATM  bool
	VACC    bool
	CVS     bool
	Barcode bool
}

// NewProviderCredential returns a credential with the provider defaults:
// test mode on and credit card enabled
func NewProviderCredential(code, merchantID, hashKey, hashIV string) *ProviderCredential {
	return &ProviderCredential{
		Code:       code,
		MerchantID: merchantID,
		HashKey:    hashKey,
		HashIV:     hashIV,
		TestMode:   true,
		Credit:     true,
	}
}

// Validate checks the credential can sign and encrypt
func (c *ProviderCredential) Validate() error {
	if c == nil {
		return ErrConfiguration
	}

	var missing []string
	if c.MerchantID == "" {
		missing = append(missing, "merchant_id")
	}
	if c.HashKey == "" {
		missing = append(missing, "hash_key")
	}
	if c.HashIV == "" {
		missing = append(missing, "hash_iv")
	}
	if len(missing) > 0 {
		return NewDomainError(ErrorCodeConfiguration, "provider configuration incomplete").
			WithDetail("missing", strings.Join(missing, ","))
	}
	return nil
}

// EnabledPaymentTypes lists the methods switched on, in MPG field order
func (c *ProviderCredential) EnabledPaymentTypes() []PaymentType {
	var types []PaymentType
	if c.Credit {
		types = append(types, PaymentTypeCredit)
	}
	if c.WebATM {
		types = append(types, PaymentTypeWebATM)
	}
	if c.VACC {
		types = append(types, PaymentTypeVACC)
	}
	if c.CVS {
		types = append(types, PaymentTypeCVS)
	}
	if c.Barcode {
		types = append(types, PaymentTypeBarcode)
	}
	return types
}

// SupportsCurrency reports whether NewebPay accepts the ISO currency code
func (c *ProviderCredential) SupportsCurrency(currency string) bool {
	switch strings.ToUpper(currency) {
	case "TWD", "USD":
		return true
	default:
		return false
	}
}

// ProviderFeatures describes what the provider can do beyond a plain sale
type ProviderFeatures struct {
	Refund        string `json:"refund"`
	Tokenization  bool   `json:"tokenization"`
	ManualCapture bool   `json:"manual_capture"`
}

// Features returns the NewebPay feature support
func (c *ProviderCredential) Features() ProviderFeatures {
	return ProviderFeatures{Refund: "partial"}
}

// String masks the secrets
func (c *ProviderCredential) String() string {
	return fmt.Sprintf("ProviderCredential{code=%s merchant_id=%s hash_key=%s hash_iv=%s test_mode=%t}",
		c.Code, c.MerchantID, security.MaskSecret(c.HashKey), security.MaskSecret(c.HashIV), c.TestMode)
}

// MarshalLogObject lets the credential be logged with zap.Object without leaking secrets
func (c *ProviderCredential) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("code", c.Code)
	enc.AddString("merchant_id", c.MerchantID)
	enc.AddString("hash_key", security.MaskSecret(c.HashKey))
	enc.AddString("hash_iv", security.MaskSecret(c.HashIV))
	enc.AddBool("test_mode", c.TestMode)
	return nil
}

// ProviderAccount is the stored provider row. The hash key and IV live in the
// secret manager and are referenced by path.
type ProviderAccount struct {
	Code        string
	MerchantID  string
	HashKeyPath string
	HashIVPath  string
	TestMode    bool
	Active      bool
	Credit      bool
	WebATM      bool
	VACC        bool
	CVS         bool
	Barcode     bool
}

// Credential combines the stored account with its resolved secrets
func (a *ProviderAccount) Credential(hashKey, hashIV string) *ProviderCredential {
	return &ProviderCredential{
		Code:       a.Code,
		MerchantID: a.MerchantID,
		HashKey:    hashKey,
		HashIV:     hashIV,
		TestMode:   a.TestMode,
		Credit:     a.Credit,
		WebATM:     a.WebATM,
		VACC:       a.VACC,
		CVS:        a.CVS,
		Barcode:    a.Barcode,
	}
}
