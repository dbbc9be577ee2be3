package secrets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kevin07696/newebpay-service/internal/adapters/ports"
)

func TestSecretCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newSecretCache(true, time.Minute)
	c.now = func() time.Time { return now }

	c.set("k", &ports.Secret{Value: "v"})
	assert.Equal(t, "v", c.get("k").Value)

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.get("k"))
}

func TestSecretCache_Disabled(t *testing.T) {
	for _, c := range []*secretCache{newSecretCache(false, time.Minute), newSecretCache(true, 0)} {
		c.set("k", &ports.Secret{Value: "v"})
		assert.Nil(t, c.get("k"))
	}
}

func TestSecretCache_Invalidate(t *testing.T) {
	c := newSecretCache(true, time.Minute)
	c.set("k", &ports.Secret{Value: "v"})
	c.invalidate("k")
	assert.Nil(t, c.get("k"))
}
