package fixtures

import (
	"github.com/kevin07696/newebpay-service/internal/adapters/newebpay"
	"github.com/kevin07696/newebpay-service/internal/domain"
)

// CallbackBuilder assembles a signed gateway callback
type CallbackBuilder struct {
	info *newebpay.TradeInfo
}

// NewCallback starts a SUCCESS credit card callback for MerchantOrderNo S0001, Amt 1000
func NewCallback() *CallbackBuilder {
	return &CallbackBuilder{
		info: newebpay.NewTradeInfo().
			Set("Status", "SUCCESS").
			Set("Message", "Authorized").
			Set("MerchantID", TestMerchantID).
			Set("Amt", "1000").
			Set("TradeNo", "24050112345678").
			Set("MerchantOrderNo", "S0001").
			Set("PaymentType", "CREDIT"),
	}
}

func (b *CallbackBuilder) With(key, value string) *CallbackBuilder {
	b.info.Set(key, value)
	return b
}

// Without rebuilds the field set minus key
func (b *CallbackBuilder) Without(key string) *CallbackBuilder {
	next := newebpay.NewTradeInfo()
	for _, k := range b.info.Keys() {
		if k != key {
			next.Set(k, b.info.Value(k))
		}
	}
	b.info = next
	return b
}

// Sealed encrypts and signs the fields with cred. Panics on bad credentials.
func (b *CallbackBuilder) Sealed(cred *domain.ProviderCredential) *newebpay.Envelope {
	env, err := newebpay.Seal(b.info, cred)
	if err != nil {
		panic(err)
	}
	return env
}
