package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"
)

func signPayload(botToken string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(fields[k])
	}

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secretKey.Sum(nil))
	mac.Write([]byte(sb.String()))
	hash := hex.EncodeToString(mac.Sum(nil))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hash)
	return values.Encode()
}

func TestVerifyExternalPayloadAccepted(t *testing.T) {
	const botToken = "test-bot-token"
	raw := signPayload(botToken, map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
		"user":      `{"id":42,"username":"crasher"}`,
	})

	identity, err := VerifyExternalPayload(ExternalPayload{Raw: raw}, botToken)
	if err != nil {
		t.Fatalf("VerifyExternalPayload() error = %v", err)
	}
	if identity.ID != "42" || identity.Username != "crasher" {
		t.Fatalf("identity = %+v, want {42 crasher}", identity)
	}
}

func TestVerifyExternalPayloadRejectsTamperedHash(t *testing.T) {
	const botToken = "test-bot-token"
	raw := signPayload(botToken, map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
		"user":      `{"id":42,"username":"crasher"}`,
	})
	tampered := strings.Replace(raw, "crasher", "attacker", 1)

	if _, err := VerifyExternalPayload(ExternalPayload{Raw: tampered}, botToken); err == nil {
		t.Fatal("expected signature mismatch error, got nil")
	}
}

func TestVerifyExternalPayloadRejectsWrongBotToken(t *testing.T) {
	raw := signPayload("correct-token", map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
		"user":      `{"id":1,"username":"a"}`,
	})
	if _, err := VerifyExternalPayload(ExternalPayload{Raw: raw}, "wrong-token"); err == nil {
		t.Fatal("expected error for mismatched bot token, got nil")
	}
}

func TestVerifyExternalPayloadRejectsExpired(t *testing.T) {
	const botToken = "test-bot-token"
	raw := signPayload(botToken, map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Add(-48*time.Hour).Unix()),
		"user":      `{"id":1,"username":"a"}`,
	})
	if _, err := VerifyExternalPayload(ExternalPayload{Raw: raw}, botToken); err == nil {
		t.Fatal("expected expiry error, got nil")
	}
}
