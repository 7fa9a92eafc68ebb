package wire

// ResultCode is the AUTH_RESULT payload.
type ResultCode uint8

const (
	ResultSuccess ResultCode = iota
	ResultNameTaken
	ResultKeyMismatch
	ResultInvalidSignature
	ResultInvalidName
	ResultAlreadyConnected
)

var resultNames = [...]string{
	"SUCCESS", "NAME_TAKEN", "KEY_MISMATCH", "INVALID_SIGNATURE", "INVALID_NAME", "ALREADY_CONNECTED",
}

func (r ResultCode) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "UNKNOWN_RESULT"
}

// AuthChallenge is sent server to client at connection accept.
type AuthChallenge struct {
	Nonce [32]byte
}

func (m AuthChallenge) Encode() []byte {
	var e encoder
	e.bytesFixed(m.Nonce[:])
	return e.bytesOut()
}

func DecodeAuthChallenge(p []byte) (AuthChallenge, error) {
	d := newDecoder(p)
	nonce, err := d.bytesFixed(32)
	if err != nil {
		return AuthChallenge{}, err
	}
	var m AuthChallenge
	copy(m.Nonce[:], nonce)
	return m, d.done()
}

// AuthResponse is sent client to server answering the challenge.
type AuthResponse struct {
	PublicKey [32]byte
	Name      string
	Signature [64]byte
}

func (m AuthResponse) Encode() []byte {
	var e encoder
	e.bytesFixed(m.PublicKey[:])
	e.str(m.Name)
	e.bytesFixed(m.Signature[:])
	return e.bytesOut()
}

func DecodeAuthResponse(p []byte) (AuthResponse, error) {
	d := newDecoder(p)
	var m AuthResponse
	pk, err := d.bytesFixed(32)
	if err != nil {
		return AuthResponse{}, err
	}
	copy(m.PublicKey[:], pk)
	m.Name, err = d.str()
	if err != nil {
		return AuthResponse{}, err
	}
	sig, err := d.bytesFixed(64)
	if err != nil {
		return AuthResponse{}, err
	}
	copy(m.Signature[:], sig)
	return m, d.done()
}

// AuthResult is sent server to client concluding the handshake.
type AuthResult struct {
	Code ResultCode
}

func (m AuthResult) Encode() []byte {
	var e encoder
	e.u8(uint8(m.Code))
	return e.bytesOut()
}

func DecodeAuthResult(p []byte) (AuthResult, error) {
	d := newDecoder(p)
	code, err := d.u8()
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Code: ResultCode(code)}, d.done()
}

// ServerHello is sent once on successful authentication.
type ServerHello struct {
	PlayerID  uint32
	Width     uint16
	Height    uint16
	X         uint16
	Y         uint16
	LevelGrid []byte
	LevelName string
}

func (m ServerHello) Encode() []byte {
	var e encoder
	e.u32(m.PlayerID)
	e.u16(m.Width)
	e.u16(m.Height)
	e.u16(m.X)
	e.u16(m.Y)
	e.blob(m.LevelGrid)
	e.str(m.LevelName)
	return e.bytesOut()
}

func DecodeServerHello(p []byte) (ServerHello, error) {
	d := newDecoder(p)
	var m ServerHello
	var err error
	if m.PlayerID, err = d.u32(); err != nil {
		return ServerHello{}, err
	}
	if m.Width, err = d.u16(); err != nil {
		return ServerHello{}, err
	}
	if m.Height, err = d.u16(); err != nil {
		return ServerHello{}, err
	}
	if m.X, err = d.u16(); err != nil {
		return ServerHello{}, err
	}
	if m.Y, err = d.u16(); err != nil {
		return ServerHello{}, err
	}
	if m.LevelGrid, err = d.blob(); err != nil {
		return ServerHello{}, err
	}
	if m.LevelName, err = d.str(); err != nil {
		return ServerHello{}, err
	}
	return m, d.done()
}

// LivekitToken carries the SFU URL and mint join token.
type LivekitToken struct {
	URL   string
	Token string
}

func (m LivekitToken) Encode() []byte {
	var e encoder
	e.str(m.URL)
	e.str(m.Token)
	return e.bytesOut()
}

func DecodeLivekitToken(p []byte) (LivekitToken, error) {
	d := newDecoder(p)
	var m LivekitToken
	var err error
	if m.URL, err = d.str(); err != nil {
		return LivekitToken{}, err
	}
	if m.Token, err = d.str(); err != nil {
		return LivekitToken{}, err
	}
	return m, d.done()
}

// LevelManifestRequest asks for a level's file manifest.
type LevelManifestRequest struct {
	LevelName string
}

func (m LevelManifestRequest) Encode() []byte {
	var e encoder
	e.str(m.LevelName)
	return e.bytesOut()
}

func DecodeLevelManifestRequest(p []byte) (LevelManifestRequest, error) {
	d := newDecoder(p)
	name, err := d.str()
	if err != nil {
		return LevelManifestRequest{}, err
	}
	return LevelManifestRequest{LevelName: name}, d.done()
}

// ManifestEntry is one file's content address within a manifest.
type ManifestEntry struct {
	Filename string
	HashHex  string
	Size     uint32
}

// LevelManifest answers a LevelManifestRequest.
type LevelManifest struct {
	Entries []ManifestEntry
}

func (m LevelManifest) Encode() []byte {
	var e encoder
	e.u32(uint32(len(m.Entries)))
	for _, ent := range m.Entries {
		e.str(ent.Filename)
		e.str(ent.HashHex)
		e.u32(ent.Size)
	}
	return e.bytesOut()
}

func DecodeLevelManifest(p []byte) (LevelManifest, error) {
	d := newDecoder(p)
	count, err := d.u32()
	if err != nil {
		return LevelManifest{}, err
	}
	entries := make([]ManifestEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var ent ManifestEntry
		if ent.Filename, err = d.str(); err != nil {
			return LevelManifest{}, err
		}
		if ent.HashHex, err = d.str(); err != nil {
			return LevelManifest{}, err
		}
		if ent.Size, err = d.u32(); err != nil {
			return LevelManifest{}, err
		}
		entries = append(entries, ent)
	}
	return LevelManifest{Entries: entries}, d.done()
}

// LevelFilesRequest asks for the bytes of specific files within a level.
type LevelFilesRequest struct {
	LevelName string
	Filenames []string
}

func (m LevelFilesRequest) Encode() []byte {
	var e encoder
	e.str(m.LevelName)
	e.u32(uint32(len(m.Filenames)))
	for _, f := range m.Filenames {
		e.str(f)
	}
	return e.bytesOut()
}

func DecodeLevelFilesRequest(p []byte) (LevelFilesRequest, error) {
	d := newDecoder(p)
	var m LevelFilesRequest
	var err error
	if m.LevelName, err = d.str(); err != nil {
		return LevelFilesRequest{}, err
	}
	count, err := d.u32()
	if err != nil {
		return LevelFilesRequest{}, err
	}
	m.Filenames = make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		f, err := d.str()
		if err != nil {
			return LevelFilesRequest{}, err
		}
		m.Filenames = append(m.Filenames, f)
	}
	return m, d.done()
}

// FileData is one file's content within a LevelFilesData response.
type FileData struct {
	Filename string
	Content  []byte
}

// LevelFilesData answers a LevelFilesRequest.
type LevelFilesData struct {
	Files []FileData
}

func (m LevelFilesData) Encode() []byte {
	var e encoder
	e.u32(uint32(len(m.Files)))
	for _, f := range m.Files {
		e.str(f.Filename)
		e.blob(f.Content)
	}
	return e.bytesOut()
}

func DecodeLevelFilesData(p []byte) (LevelFilesData, error) {
	d := newDecoder(p)
	count, err := d.u32()
	if err != nil {
		return LevelFilesData{}, err
	}
	files := make([]FileData, 0, count)
	for i := uint32(0); i < count; i++ {
		var f FileData
		if f.Filename, err = d.str(); err != nil {
			return LevelFilesData{}, err
		}
		if f.Content, err = d.blob(); err != nil {
			return LevelFilesData{}, err
		}
		files = append(files, f)
	}
	return LevelFilesData{Files: files}, d.done()
}

// PositionUpdate is a client's requested move.
type PositionUpdate struct {
	Seq uint32
	X   uint16
	Y   uint16
}

func (m PositionUpdate) Encode() []byte {
	var e encoder
	e.u32(m.Seq)
	e.u16(m.X)
	e.u16(m.Y)
	return e.bytesOut()
}

func DecodePositionUpdate(p []byte) (PositionUpdate, error) {
	d := newDecoder(p)
	var m PositionUpdate
	var err error
	if m.Seq, err = d.u32(); err != nil {
		return PositionUpdate{}, err
	}
	if m.X, err = d.u16(); err != nil {
		return PositionUpdate{}, err
	}
	if m.Y, err = d.u16(); err != nil {
		return PositionUpdate{}, err
	}
	return m, d.done()
}

// PositionAck is the server's authoritative reply to a PositionUpdate.
type PositionAck struct {
	Seq uint32
	X   uint16
	Y   uint16
}

func (m PositionAck) Encode() []byte {
	var e encoder
	e.u32(m.Seq)
	e.u16(m.X)
	e.u16(m.Y)
	return e.bytesOut()
}

func DecodePositionAck(p []byte) (PositionAck, error) {
	d := newDecoder(p)
	var m PositionAck
	var err error
	if m.Seq, err = d.u32(); err != nil {
		return PositionAck{}, err
	}
	if m.X, err = d.u16(); err != nil {
		return PositionAck{}, err
	}
	if m.Y, err = d.u16(); err != nil {
		return PositionAck{}, err
	}
	return m, d.done()
}

// DoorTransition is sent when a move crosses to a different level.
type DoorTransition struct {
	TargetLevel string
	SpawnX      uint16
	SpawnY      uint16
}

func (m DoorTransition) Encode() []byte {
	var e encoder
	e.str(m.TargetLevel)
	e.u16(m.SpawnX)
	e.u16(m.SpawnY)
	return e.bytesOut()
}

func DecodeDoorTransition(p []byte) (DoorTransition, error) {
	d := newDecoder(p)
	var m DoorTransition
	var err error
	if m.TargetLevel, err = d.str(); err != nil {
		return DoorTransition{}, err
	}
	if m.SpawnX, err = d.u16(); err != nil {
		return DoorTransition{}, err
	}
	if m.SpawnY, err = d.u16(); err != nil {
		return DoorTransition{}, err
	}
	return m, d.done()
}

// PlayerRecord is one row of a WORLD_STATE snapshot.
type PlayerRecord struct {
	PlayerID  uint32
	X         uint16
	Y         uint16
	IsMuted   bool
	Name      string
	LevelName string
	PingMs    uint32
}

// WorldState is the full live-player snapshot, broadcast on any authoritative change.
type WorldState struct {
	Players []PlayerRecord
}

func (m WorldState) Encode() []byte {
	var e encoder
	e.u32(uint32(len(m.Players)))
	for _, rec := range m.Players {
		e.u32(rec.PlayerID)
		e.u16(rec.X)
		e.u16(rec.Y)
		e.u8(boolToU8(rec.IsMuted))
		e.str(rec.Name)
		e.str(rec.LevelName)
		e.u32(rec.PingMs)
	}
	return e.bytesOut()
}

func DecodeWorldState(p []byte) (WorldState, error) {
	d := newDecoder(p)
	count, err := d.u32()
	if err != nil {
		return WorldState{}, err
	}
	players := make([]PlayerRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		var rec PlayerRecord
		if rec.PlayerID, err = d.u32(); err != nil {
			return WorldState{}, err
		}
		if rec.X, err = d.u16(); err != nil {
			return WorldState{}, err
		}
		if rec.Y, err = d.u16(); err != nil {
			return WorldState{}, err
		}
		muted, err := d.u8()
		if err != nil {
			return WorldState{}, err
		}
		rec.IsMuted = muted != 0
		if rec.Name, err = d.str(); err != nil {
			return WorldState{}, err
		}
		if rec.LevelName, err = d.str(); err != nil {
			return WorldState{}, err
		}
		if rec.PingMs, err = d.u32(); err != nil {
			return WorldState{}, err
		}
		players = append(players, rec)
	}
	return WorldState{Players: players}, d.done()
}

// PlayerJoined announces a new live player to every other session.
type PlayerJoined struct {
	PlayerID uint32
	Name     string
}

func (m PlayerJoined) Encode() []byte {
	var e encoder
	e.u32(m.PlayerID)
	e.str(m.Name)
	return e.bytesOut()
}

func DecodePlayerJoined(p []byte) (PlayerJoined, error) {
	d := newDecoder(p)
	var m PlayerJoined
	var err error
	if m.PlayerID, err = d.u32(); err != nil {
		return PlayerJoined{}, err
	}
	if m.Name, err = d.str(); err != nil {
		return PlayerJoined{}, err
	}
	return m, d.done()
}

// PlayerLeft announces a disconnect to every session.
type PlayerLeft struct {
	PlayerID uint32
}

func (m PlayerLeft) Encode() []byte {
	var e encoder
	e.u32(m.PlayerID)
	return e.bytesOut()
}

func DecodePlayerLeft(p []byte) (PlayerLeft, error) {
	d := newDecoder(p)
	id, err := d.u32()
	if err != nil {
		return PlayerLeft{}, err
	}
	return PlayerLeft{PlayerID: id}, d.done()
}

// MuteStatus toggles a player's own mute flag.
type MuteStatus struct {
	Muted bool
}

func (m MuteStatus) Encode() []byte {
	var e encoder
	e.u8(boolToU8(m.Muted))
	return e.bytesOut()
}

func DecodeMuteStatus(p []byte) (MuteStatus, error) {
	d := newDecoder(p)
	v, err := d.u8()
	if err != nil {
		return MuteStatus{}, err
	}
	return MuteStatus{Muted: v != 0}, d.done()
}

// Ping and Pong carry no payload.
type Ping struct{}
type Pong struct{}

func (Ping) Encode() []byte { return nil }
func (Pong) Encode() []byte { return nil }

func DecodePing(p []byte) (Ping, error) {
	if len(p) != 0 {
		return Ping{}, ErrFraming
	}
	return Ping{}, nil
}

func DecodePong(p []byte) (Pong, error) {
	if len(p) != 0 {
		return Pong{}, ErrFraming
	}
	return Pong{}, nil
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
