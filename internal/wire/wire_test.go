package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{1, 2, 3, 4, 5}
	if err := WriteFrame(&buf, TypePositionUpdate, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.Type != TypePositionUpdate {
		t.Fatalf("type = %v, want %v", frame.Type, TypePositionUpdate)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload = %v, want %v", frame.Payload, payload)
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatal("expected framing error on short header")
	}
}

func TestReadFrameShortPayload(t *testing.T) {
	var header [5]byte
	header[0] = byte(TypePing)
	header[4] = 10 // declares 10 payload bytes, supplies none
	_, err := ReadFrame(bytes.NewReader(header[:]))
	if err == nil {
		t.Fatal("expected framing error on short payload")
	}
}

func TestReadFrameUnknownType(t *testing.T) {
	var header [5]byte
	header[0] = 0xFE
	_, err := ReadFrame(bytes.NewReader(header[:]))
	if err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	t.Run("AuthChallenge", func(t *testing.T) {
		var m AuthChallenge
		for i := range m.Nonce {
			m.Nonce[i] = byte(i)
		}
		got, err := DecodeAuthChallenge(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("AuthResponse", func(t *testing.T) {
		m := AuthResponse{Name: "alice"}
		for i := range m.PublicKey {
			m.PublicKey[i] = byte(i)
		}
		for i := range m.Signature {
			m.Signature[i] = byte(255 - i)
		}
		got, err := DecodeAuthResponse(m.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != m {
			t.Fatalf("got %+v, want %+v", got, m)
		}
	})

	t.Run("AuthResult", func(t *testing.T) {
		m := AuthResult{Code: ResultNameTaken}
		got, err := DecodeAuthResult(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("ServerHello", func(t *testing.T) {
		m := ServerHello{
			PlayerID: 7, Width: 10, Height: 20, X: 3, Y: 4,
			LevelGrid: []byte("..#..\n..#.."),
			LevelName: "main",
		}
		got, err := DecodeServerHello(m.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.PlayerID != m.PlayerID || got.LevelName != m.LevelName || !bytes.Equal(got.LevelGrid, m.LevelGrid) {
			t.Fatalf("got %+v, want %+v", got, m)
		}
	})

	t.Run("LivekitToken", func(t *testing.T) {
		m := LivekitToken{URL: "wss://sfu.example", Token: "eyJ..."}
		got, err := DecodeLivekitToken(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("LevelManifest", func(t *testing.T) {
		m := LevelManifest{Entries: []ManifestEntry{
			{Filename: "level.txt", HashHex: "abcd", Size: 42},
			{Filename: "tiles.json", HashHex: "ef01", Size: 100},
		}}
		got, err := DecodeLevelManifest(m.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got.Entries) != len(m.Entries) || got.Entries[1].Filename != "tiles.json" {
			t.Fatalf("got %+v, want %+v", got, m)
		}
	})

	t.Run("LevelFilesData", func(t *testing.T) {
		m := LevelFilesData{Files: []FileData{
			{Filename: "level.json", Content: []byte("{}")},
		}}
		got, err := DecodeLevelFilesData(m.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got.Files) != 1 || !bytes.Equal(got.Files[0].Content, []byte("{}")) {
			t.Fatalf("got %+v, want %+v", got, m)
		}
	})

	t.Run("PositionUpdate", func(t *testing.T) {
		m := PositionUpdate{Seq: 7, X: 6, Y: 5}
		got, err := DecodePositionUpdate(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("PositionAck", func(t *testing.T) {
		m := PositionAck{Seq: 7, X: 5, Y: 5}
		got, err := DecodePositionAck(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("DoorTransition", func(t *testing.T) {
		m := DoorTransition{TargetLevel: "dungeon", SpawnX: 3, SpawnY: 4}
		got, err := DecodeDoorTransition(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("WorldState", func(t *testing.T) {
		m := WorldState{Players: []PlayerRecord{
			{PlayerID: 1, X: 5, Y: 5, IsMuted: false, Name: "alice", LevelName: "main", PingMs: 42},
			{PlayerID: 2, X: 2, Y: 2, IsMuted: true, Name: "bob", LevelName: "dungeon", PingMs: 0},
		}}
		got, err := DecodeWorldState(m.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got.Players) != 2 || got.Players[1].Name != "bob" || !got.Players[1].IsMuted {
			t.Fatalf("got %+v, want %+v", got, m)
		}
	})

	t.Run("PlayerJoined", func(t *testing.T) {
		m := PlayerJoined{PlayerID: 3, Name: "carol"}
		got, err := DecodePlayerJoined(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("PlayerLeft", func(t *testing.T) {
		m := PlayerLeft{PlayerID: 3}
		got, err := DecodePlayerLeft(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("MuteStatus", func(t *testing.T) {
		m := MuteStatus{Muted: true}
		got, err := DecodeMuteStatus(m.Encode())
		if err != nil || got != m {
			t.Fatalf("got %+v, err %v, want %+v", got, err, m)
		}
	})

	t.Run("PingPong", func(t *testing.T) {
		if _, err := DecodePing(Ping{}.Encode()); err != nil {
			t.Fatalf("ping decode: %v", err)
		}
		if _, err := DecodePong(Pong{}.Encode()); err != nil {
			t.Fatalf("pong decode: %v", err)
		}
	})
}

func TestDecodeTruncatedPayload(t *testing.T) {
	_, err := DecodeAuthChallenge([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error decoding truncated AuthChallenge")
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	m := PlayerLeft{PlayerID: 1}
	encoded := append(m.Encode(), 0xFF)
	if _, err := DecodePlayerLeft(encoded); err == nil {
		t.Fatal("expected error decoding payload with trailing bytes")
	}
}
