package voice

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintProducesVerifiableToken(t *testing.T) {
	iss := NewIssuer("wss://sfu.example", "key1", "supersecret")
	url, token, err := iss.Mint("alice")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if url != "wss://sfu.example" {
		t.Fatalf("url = %q", url)
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("supersecret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v, valid=%v", err, parsed.Valid)
	}
	c := parsed.Claims.(*claims)
	if c.Subject != "alice" || c.Video.Room != RoomName || !c.Video.CanPub || !c.Video.CanSub {
		t.Fatalf("claims = %+v", c)
	}
}

func TestMintRejectsEmptyName(t *testing.T) {
	iss := NewIssuer("wss://sfu.example", "key1", "secret")
	if _, _, err := iss.Mint(""); err == nil {
		t.Fatal("expected error minting token for empty player name")
	}
}
