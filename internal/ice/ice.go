// Package ice builds the ICE server configuration handed to clients before
// they negotiate peer connections. Media always flows peer-to-peer; the
// server only vends STUN/TURN endpoints and ephemeral credentials.
package ice

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"huddle/internal/config"
)

// DefaultSTUNURL is used when no TURN relay is configured.
const DefaultSTUNURL = "stun:stun.l.google.com:19302"

// ServerInfo is one entry of an RTCConfiguration iceServers list.
type ServerInfo struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// GenerateTURNCredentials generates ephemeral TURN credentials using the
// TURN REST API (HMAC-SHA1) scheme compatible with coturn's use-auth-secret.
func GenerateTURNCredentials(secret string, userID int64, ttl time.Duration) (username, credential string) {
	expiry := time.Now().Add(ttl).Unix()
	username = fmt.Sprintf("%d:%s", expiry, strconv.FormatInt(userID, 10))

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	credential = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return
}

// BuildServers produces the ICE server list for one user. With TURN
// configured (Host non-empty) it returns a STUN and a TURN entry pointing at
// the relay; otherwise it falls back to a public STUN server so peers behind
// ordinary NATs can still connect directly.
func BuildServers(cfg config.TURNConfig, userID int64) []ServerInfo {
	if cfg.Host == "" {
		return []ServerInfo{
			{URLs: []string{DefaultSTUNURL}},
		}
	}

	stunURL := fmt.Sprintf("stun:%s:%d", cfg.Host, cfg.Port)
	turnURL := fmt.Sprintf("turn:%s:%d", cfg.Host, cfg.Port)

	username, credential := GenerateTURNCredentials(cfg.Secret, userID, cfg.TTL)

	return []ServerInfo{
		{URLs: []string{stunURL}},
		{URLs: []string{turnURL}, Username: username, Credential: credential},
	}
}
