package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnswerKeyNormalizesQuestion(t *testing.T) {
	base := answerKey(1, "what is the vpn policy?")

	assert.Equal(t, base, answerKey(1, "  What is the VPN policy?  "))
	assert.Equal(t, base, answerKey(1, "WHAT IS THE VPN POLICY?"))
	assert.NotEqual(t, base, answerKey(1, "what is the wifi policy?"))
}

func TestAnswerKeyScopedByTenant(t *testing.T) {
	question := "what is the vpn policy?"

	assert.NotEqual(t, answerKey(1, question), answerKey(2, question))
	assert.Contains(t, answerKey(7, question), "qa:7:")
}

func TestRateAndIdempotencyKeys(t *testing.T) {
	assert.Equal(t, "rate:42", rateKey(42))
	assert.Equal(t, "idem:req-001", idempotencyKey("req-001"))
}
