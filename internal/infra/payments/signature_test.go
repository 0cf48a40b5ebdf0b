package payments

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_dGVzdC1zZWNyZXQta2V5LXZhbHVl"

func freshTimestamp() string {
	return fmt.Sprintf("%d", time.Now().Unix())
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	payload := []byte(`{"type":"subscription.renewed"}`)
	ts := freshTimestamp()

	sig, err := Sign(testSecret, "msg_1", ts, payload)
	require.NoError(t, err)

	assert.NoError(t, VerifySignature(testSecret, "msg_1", ts, sig, payload))
}

func TestVerifySignatureTamperedBody(t *testing.T) {
	ts := freshTimestamp()
	sig, err := Sign(testSecret, "msg_1", ts, []byte(`{"type":"subscription.renewed"}`))
	require.NoError(t, err)

	err = VerifySignature(testSecret, "msg_1", ts, sig, []byte(`{"type":"subscription.cancelled"}`))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	ts := freshTimestamp()
	payload := []byte(`{}`)
	sig, err := Sign(testSecret, "msg_1", ts, payload)
	require.NoError(t, err)

	err = VerifySignature("whsec_b3RoZXItc2VjcmV0", "msg_1", ts, sig, payload)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	stale := fmt.Sprintf("%d", time.Now().Add(-time.Hour).Unix())
	sig, err := Sign(testSecret, "msg_1", stale, payload)
	require.NoError(t, err)

	err = VerifySignature(testSecret, "msg_1", stale, sig, payload)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureMultipleEntries(t *testing.T) {
	payload := []byte(`{"type":"subscription.active"}`)
	ts := freshTimestamp()
	sig, err := Sign(testSecret, "msg_1", ts, payload)
	require.NoError(t, err)

	header := "v1,AAAAinvalidAAAA " + sig
	assert.NoError(t, VerifySignature(testSecret, "msg_1", ts, header, payload))
}

func TestVerifySignatureMissingParts(t *testing.T) {
	assert.ErrorIs(t, VerifySignature(testSecret, "", freshTimestamp(), "v1,x", []byte(`{}`)), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(testSecret, "msg_1", "", "v1,x", []byte(`{}`)), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(testSecret, "msg_1", "not-a-number", "v1,x", []byte(`{}`)), ErrInvalidSignature)
}
