package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyEIP191(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := SignEIP191("hello", key)
	require.NoError(t, err)

	got, err := VerifyEIP191Signature("hello", sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other, err := VerifyEIP191Signature("hello!", sig)
	require.NoError(t, err)
	assert.NotEqual(t, want, other)

	_, err = VerifyEIP191Signature("hello", "0x1234")
	require.ErrorContains(t, err, "invalid signature length")

	_, err = VerifyEIP191Signature("hello", "zz")
	require.ErrorContains(t, err, "invalid signature hex")
}

func TestVerifyMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	msg := NewMessage(now.Add(-time.Minute))
	sig, err := SignEIP191(msg, key)
	require.NoError(t, err)

	addr, err := VerifyMessage(msg, sig, now, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	_, err = VerifyMessage(msg, sig, now.Add(time.Hour), 5*time.Minute)
	require.ErrorIs(t, err, ErrMessageExpired)

	_, err = VerifyMessage("hello", sig, now, 5*time.Minute)
	require.ErrorIs(t, err, ErrMalformedMessage)

	_, err = VerifyMessage(MessagePrefix+"abc", sig, now, 5*time.Minute)
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestRequireSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	var seen common.Address
	h := RequireSignature(time.Minute, func() time.Time { return now })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = CallerFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	msg := NewMessage(now)
	sig, err := SignEIP191(msg, key)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderMessage, msg)
	req.Header.Set(HeaderSignature, sig)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), seen)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderMessage, NewMessage(now.Add(-time.Hour)))
	req.Header.Set(HeaderSignature, sig)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateEVMAddress(t *testing.T) {
	assert.True(t, ValidateEVMAddress("0x00000000000000000000000000000000000000a1"))
	assert.False(t, ValidateEVMAddress("00000000000000000000000000000000000000a1"))
	assert.False(t, ValidateEVMAddress("0x00a1"))
	assert.False(t, ValidateEVMAddress("0xzz000000000000000000000000000000000000a1"))
}
