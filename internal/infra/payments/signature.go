package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSignature is terminal for a delivery: redelivering the same
// payload cannot make the signature valid.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

const signatureTolerance = 5 * time.Minute

// VerifySignature checks a webhook delivery signed with the standard
// symmetric scheme: base64(HMAC-SHA256(secret, "{id}.{timestamp}.{body}")).
// The signature header may carry several space-separated "v1,<sig>" entries
// (the provider rotates secrets that way); any one matching is enough.
func VerifySignature(secret, webhookID, timestamp, signatureHeader string, payload []byte) error {
	if webhookID == "" || timestamp == "" || signatureHeader == "" {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := time.Since(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrInvalidSignature
	}

	key, err := secretBytes(secret)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", webhookID, timestamp)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(signatureHeader) {
		version, sig, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign produces the v1 signature entry for a payload. Exists so tests and
// local tooling can fabricate valid deliveries.
func Sign(secret, webhookID, timestamp string, payload []byte) (string, error) {
	key, err := secretBytes(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", webhookID, timestamp)
	mac.Write(payload)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func secretBytes(secret string) ([]byte, error) {
	raw := strings.TrimPrefix(secret, "whsec_")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// Secrets handed out before the whsec_ convention are plain strings.
		return []byte(raw), nil
	}
	return decoded, nil
}
