package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Header names set on every delivery.
const (
	HeaderTimestamp = "X-Worklog-Timestamp"
	HeaderSignature = "X-Worklog-Signature"
)

// Sign returns "sha256=<hex>" over "<unix timestamp>.<body>".
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a delivery's signature and rejects timestamps further than
// maxSkew from now. Receivers can use it as-is.
func Verify(secret, timestamp, signature string, body []byte, maxSkew time.Duration) bool {
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if skew := time.Since(time.Unix(unix, 0)); skew > maxSkew || skew < -maxSkew {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(signature))
}
