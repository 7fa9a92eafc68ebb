// Package voice mints short-lived SFU join tokens (spec §4.5). It never
// proxies media; the SFU is trusted and co-located.
package voice

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// defaultExpiry is deliberately short: the token only needs to survive the
// handshake-to-SFU-join window.
const defaultExpiry = 60 * time.Second

// RoomName is the fixed voice room every player joins; proximity volume is
// scaled client-side from WORLD_STATE, not by per-room SFU partitioning.
const RoomName = "gridvoice"

// grant mirrors the LiveKit join-token claim shape referenced by the
// original Python implementation's livekit integration, without depending
// on the LiveKit SDK itself (SFU internals are out of scope).
type grant struct {
	Room     string `json:"room"`
	RoomJoin bool   `json:"roomJoin"`
	CanPub   bool   `json:"canPublish"`
	CanSub   bool   `json:"canSubscribe"`
}

type claims struct {
	jwt.RegisteredClaims
	Video grant `json:"video"`
}

// Issuer mints HMAC-signed join tokens for the configured SFU.
type Issuer struct {
	url    string
	apiKey string
	secret []byte
}

// NewIssuer returns an Issuer for the SFU reachable at url, authenticating
// minted tokens with apiKey/secret (spec §6 "SFU").
func NewIssuer(url, apiKey, secret string) *Issuer {
	return &Issuer{url: url, apiKey: apiKey, secret: []byte(secret)}
}

// Mint builds a token granting playerName publish+subscribe access to the
// fixed voice room, expiring shortly after issuance (spec §4.5).
func (iss *Issuer) Mint(playerName string) (url, token string, err error) {
	if playerName == "" {
		return "", "", fmt.Errorf("voice: player name is required")
	}
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    iss.apiKey,
			Subject:   playerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(defaultExpiry)),
		},
		Video: grant{Room: RoomName, RoomJoin: true, CanPub: true, CanSub: true},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(iss.secret)
	if err != nil {
		return "", "", fmt.Errorf("voice: sign token: %w", err)
	}
	return iss.url, signed, nil
}
