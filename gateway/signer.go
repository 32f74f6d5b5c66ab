package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"futures-connect-go/errs"
)

// Sign 计算 HMAC-SHA256(secret, query) 的小写十六进制签名。
// query 必须是最终发送的规范查询串（不含 signature 本身）。
func Sign(query, secret string) (string, error) {
	if secret == "" {
		return "", &errs.ConfigurationError{Field: "secret", Reason: "api secret is empty"}
	}
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write([]byte(query)); err != nil {
		return "", &errs.ConfigurationError{Field: "secret", Reason: "hmac: " + err.Error()}
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}
