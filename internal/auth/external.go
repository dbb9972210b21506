package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ExternalPayload is the raw query-string-shaped payload an external
// platform's WebApp client hands to the front end (Telegram's `initData`
// shape: a urlencoded field set including a `hash` field computed over
// every other field).
type ExternalPayload struct {
	Raw string
}

// ExternalIdentity is what VerifyExternalPayload extracts once the
// signature checks out.
type ExternalIdentity struct {
	ID       string
	Username string
}

// VerifyExternalPayload checks payload.Raw's HMAC signature against
// botToken and returns the embedded identity (spec §4.3). No pack library
// implements this specific check (it is Telegram's own WebApp protocol,
// not a general JWT/OAuth shape), so it is hand-rolled over stdlib
// crypto/hmac — see DESIGN.md.
func VerifyExternalPayload(payload ExternalPayload, botToken string) (*ExternalIdentity, error) {
	values, err := url.ParseQuery(payload.Raw)
	if err != nil {
		return nil, fmt.Errorf("auth: malformed external payload: %w", err)
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return nil, fmt.Errorf("auth: missing hash field")
	}
	values.Del("hash")

	if authDate := values.Get("auth_date"); authDate != "" {
		if ts, err := strconv.ParseInt(authDate, 10, 64); err == nil {
			if time.Since(time.Unix(ts, 0)) > 24*time.Hour {
				return nil, fmt.Errorf("auth: external payload expired")
			}
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
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
		sb.WriteString(values.Get(k))
	}

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secretKey.Sum(nil))
	mac.Write([]byte(sb.String()))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(providedHash)) {
		return nil, fmt.Errorf("auth: signature mismatch")
	}

	userJSON := values.Get("user")
	var user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if userJSON != "" {
		if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
			return nil, fmt.Errorf("auth: malformed user field: %w", err)
		}
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("auth: payload carries no user id")
	}

	username := user.Username
	if username == "" {
		username = fmt.Sprintf("player%d", user.ID)
	}

	return &ExternalIdentity{
		ID:       strconv.FormatInt(user.ID, 10),
		Username: username,
	}, nil
}
