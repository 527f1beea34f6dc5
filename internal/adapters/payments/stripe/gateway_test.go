package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func sign(t *testing.T, payload []byte, ts int64) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookAcceptsValidSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_123","payment_intent":"pi_456","payment_status":"paid"}}}`)
	header := sign(t, payload, time.Now().Unix())

	evt, err := VerifyWebhook(payload, header, testSecret, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "checkout.session.completed", evt.Type)
	assert.Equal(t, "cs_123", evt.Data.Object.ID)
	assert.Equal(t, "pi_456", evt.Data.Object.PaymentIntent)
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := sign(t, payload, time.Now().Unix())

	_, err := VerifyWebhook(payload, header, "whsec_other", 5*time.Minute)
	require.Error(t, err)

	_, err = VerifyWebhook([]byte(`{"tampered":true}`), header, testSecret, 5*time.Minute)
	require.Error(t, err)
}

func TestVerifyWebhookRejectsReplay(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	old := time.Now().Add(-10 * time.Minute).Unix()
	header := sign(t, payload, old)

	_, err := VerifyWebhook(payload, header, testSecret, 5*time.Minute)
	require.Error(t, err)
}

func TestVerifyWebhookRejectsGarbageHeader(t *testing.T) {
	payload := []byte(`{}`)
	for _, header := range []string{"", "t=abc,v1=def", "v1=deadbeef", "t=123"} {
		_, err := VerifyWebhook(payload, header, testSecret, 5*time.Minute)
		assert.Error(t, err, "header %q", header)
	}
}
