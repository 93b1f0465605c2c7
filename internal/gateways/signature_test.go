package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignPayloadRoundTrip(t *testing.T) {
	secret := "test-secret"
	payload := []byte(`{"tx_ref":"abc","outcome":"success"}`)

	sig := SignPayload(secret, payload)
	assert.NotEmpty(t, sig)
	assert.True(t, VerifySignature(secret, payload, sig))
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	secret := "test-secret"
	payload := []byte(`{"tx_ref":"abc","outcome":"success"}`)
	sig := SignPayload(secret, payload)

	tampered := []byte(`{"tx_ref":"abc","outcome":"failed"}`)
	assert.False(t, VerifySignature(secret, tampered, sig))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"tx_ref":"abc"}`)
	sig := SignPayload("secret-a", payload)
	assert.False(t, VerifySignature("secret-b", payload, sig))
}

func TestVerifySignatureRejectsMalformedHex(t *testing.T) {
	assert.False(t, VerifySignature("secret", []byte("body"), "not-hex!"))
	assert.False(t, VerifySignature("secret", []byte("body"), ""))
}
