package session_test

import (
	"context"
	"crypto/ed25519"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gridvoice/internal/identity"
	"gridvoice/internal/level"
	"gridvoice/internal/session"
	"gridvoice/internal/voice"
	"gridvoice/internal/wire"
	"gridvoice/internal/world"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func startTestServer(t *testing.T) (addr string, reg *identity.Registry) {
	t.Helper()
	levelsDir := t.TempDir()
	mainDir := filepath.Join(levelsDir, "main")
	if err := os.MkdirAll(mainDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, mainDir, "level.txt", "..........\n..........\n")
	writeFile(t, mainDir, "tiles.json", `{".": {"walkable": true, "is_spawn": true}}`)
	writeFile(t, mainDir, "level.json", `{"doors": []}`)

	levels, err := level.Load(levelsDir)
	if err != nil {
		t.Fatalf("level.Load: %v", err)
	}

	reg, err = identity.Open(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("identity.Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	w := world.New(levels)
	iss := voice.NewIssuer("wss://sfu.example", "key", "secret")
	srv := session.NewServer(w, reg, iss, 0)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx, ln)

	return ln.Addr().String(), reg
}

func TestHandshakeNewPlayer(t *testing.T) {
	addr, reg := startTestServer(t)

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	frame, err := wire.ReadFrame(c)
	if err != nil {
		t.Fatalf("read AUTH_CHALLENGE: %v", err)
	}
	if frame.Type != wire.TypeAuthChallenge {
		t.Fatalf("type = %v, want AUTH_CHALLENGE", frame.Type)
	}
	challenge, err := wire.DecodeAuthChallenge(frame.Payload)
	if err != nil {
		t.Fatalf("decode challenge: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signed := append(append([]byte{}, challenge.Nonce[:]...), []byte("alice")...)
	sig := ed25519.Sign(priv, signed)

	var resp wire.AuthResponse
	copy(resp.PublicKey[:], pub)
	resp.Name = "alice"
	copy(resp.Signature[:], sig)

	if err := wire.WriteFrame(c, wire.TypeAuthResponse, resp.Encode()); err != nil {
		t.Fatalf("write AUTH_RESPONSE: %v", err)
	}

	frame, err = wire.ReadFrame(c)
	if err != nil {
		t.Fatalf("read AUTH_RESULT: %v", err)
	}
	result, err := wire.DecodeAuthResult(frame.Payload)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Code != wire.ResultSuccess {
		t.Fatalf("result = %v, want SUCCESS", result.Code)
	}

	frame, err = wire.ReadFrame(c)
	if err != nil {
		t.Fatalf("read SERVER_HELLO: %v", err)
	}
	hello, err := wire.DecodeServerHello(frame.Payload)
	if err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	if hello.PlayerID != 1 {
		t.Fatalf("player_id = %d, want 1", hello.PlayerID)
	}

	frame, err = wire.ReadFrame(c)
	if err != nil {
		t.Fatalf("read LIVEKIT_TOKEN: %v", err)
	}
	if frame.Type != wire.TypeLivekitToken {
		t.Fatalf("type = %v, want LIVEKIT_TOKEN", frame.Type)
	}

	var pk [32]byte
	copy(pk[:], pub)
	name, err := reg.GetNameByKey(context.Background(), pk)
	if err != nil || name != "alice" {
		t.Fatalf("registry binding: name=%q err=%v, want alice", name, err)
	}
}

func TestNameTakenRejection(t *testing.T) {
	addr, reg := startTestServer(t)

	_, priv1, _ := ed25519.GenerateKey(nil)
	if err := reg.Register(context.Background(), "alice", keyFromPriv(priv1)); err != nil {
		t.Fatalf("pre-register: %v", err)
	}

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	frame, _ := wire.ReadFrame(c)
	challenge, _ := wire.DecodeAuthChallenge(frame.Payload)

	pub2, priv2, _ := ed25519.GenerateKey(nil)
	_ = pub2
	signed := append(append([]byte{}, challenge.Nonce[:]...), []byte("alice")...)
	sig := ed25519.Sign(priv2, signed)

	var resp wire.AuthResponse
	copy(resp.PublicKey[:], priv2.Public().(ed25519.PublicKey))
	resp.Name = "alice"
	copy(resp.Signature[:], sig)
	wire.WriteFrame(c, wire.TypeAuthResponse, resp.Encode())

	frame, err = wire.ReadFrame(c)
	if err != nil {
		t.Fatalf("read AUTH_RESULT: %v", err)
	}
	result, _ := wire.DecodeAuthResult(frame.Payload)
	if result.Code != wire.ResultNameTaken {
		t.Fatalf("result = %v, want NAME_TAKEN", result.Code)
	}
}

func keyFromPriv(priv ed25519.PrivateKey) [32]byte {
	var k [32]byte
	copy(k[:], priv.Public().(ed25519.PublicKey))
	return k
}
