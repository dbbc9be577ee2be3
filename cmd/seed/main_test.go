package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAccount(t *testing.T) {
	account, err := buildAccount("newebpay", "MS12345678", "credit, VACC,barcode", true, true)
	require.NoError(t, err)

	assert.True(t, account.Credit)
	assert.True(t, account.VACC)
	assert.True(t, account.Barcode)
	assert.False(t, account.WebATM)
	assert.False(t, account.CVS)
	assert.True(t, account.TestMode)
	assert.Equal(t, "newebpay-service/providers/newebpay/hash_key", account.HashKeyPath)
	assert.Equal(t, "newebpay-service/providers/newebpay/hash_iv", account.HashIVPath)

	_, err = buildAccount("newebpay", "MS12345678", "CREDIT,PAYPAL", true, true)
	assert.Error(t, err)
}
