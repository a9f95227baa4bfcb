package protocol

import "fmt"

// MessageType is the type byte of a frame.
type MessageType uint8

const (
	MsgConnectRequest     MessageType = 1
	MsgDisconnect         MessageType = 2
	MsgConnectionApproved MessageType = 3
	MsgPlayerInfo         MessageType = 4
	MsgRequestWorldInfo   MessageType = 6
	MsgWorldInfo          MessageType = 7
	MsgRequestTileSection MessageType = 8
	MsgPlayerUpdate       MessageType = 13
	MsgPlayerActive       MessageType = 14
	MsgTileModify         MessageType = 17
	MsgTileSquare         MessageType = 20
	MsgItemInfo           MessageType = 21
	MsgChatMessage        MessageType = 25
	MsgProjectileUpdate   MessageType = 27
	MsgRequestPassword    MessageType = 37
	MsgSendPassword       MessageType = 38
)

// ServerClientID is the sender id of chat messages written by the server.
const ServerClientID = -1

var typeNames = map[MessageType]string{
	MsgConnectRequest:     "ConnectRequest",
	MsgDisconnect:         "Disconnect",
	MsgConnectionApproved: "ConnectionApproved",
	MsgPlayerInfo:         "PlayerInfo",
	MsgRequestWorldInfo:   "RequestWorldInfo",
	MsgWorldInfo:          "WorldInfo",
	MsgRequestTileSection: "RequestTileSection",
	MsgPlayerUpdate:       "PlayerUpdate",
	MsgPlayerActive:       "PlayerActive",
	MsgTileModify:         "TileModify",
	MsgTileSquare:         "TileSquare",
	MsgItemInfo:           "ItemInfo",
	MsgChatMessage:        "ChatMessage",
	MsgProjectileUpdate:   "ProjectileUpdate",
	MsgRequestPassword:    "RequestPassword",
	MsgSendPassword:       "SendPassword",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// MessageTypeName returns a human-readable name for the message type.
func MessageTypeName(msg Message) string {
	return msg.Type.String()
}

// Payload is a typed message body.
type Payload interface {
	Type() MessageType
	MarshalBody() []byte
}

// Unmarshaler is a typed message body that can be decoded in place.
type Unmarshaler interface {
	Type() MessageType
	UnmarshalBody(body []byte) error
}

// New wraps a payload into a Message.
func New(p Payload) Message {
	return Message{Type: p.Type(), Body: p.MarshalBody()}
}

// Unmarshal decodes msg into p after checking the type byte.
func Unmarshal(msg Message, p Unmarshaler) error {
	if msg.Type != p.Type() {
		return fmt.Errorf("%w: got %s, want %s", ErrTypeMismatch, msg.Type, p.Type())
	}
	if err := p.UnmarshalBody(msg.Body); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	return nil
}

// ConnectRequest opens the handshake.
type ConnectRequest struct {
	Version string
}

func (ConnectRequest) Type() MessageType { return MsgConnectRequest }

func (p ConnectRequest) MarshalBody() []byte {
	var w fieldWriter
	w.string(1, p.Version)
	return w.b
}

func (p *ConnectRequest) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		if r.num == 1 {
			p.Version = r.string()
		}
	}
	return r.err
}

// Disconnect tells the client why it is being dropped.
type Disconnect struct {
	Reason string
}

func (Disconnect) Type() MessageType { return MsgDisconnect }

func (p Disconnect) MarshalBody() []byte {
	var w fieldWriter
	w.string(1, p.Reason)
	return w.b
}

func (p *Disconnect) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		if r.num == 1 {
			p.Reason = r.string()
		}
	}
	return r.err
}

// ConnectionApproved assigns the client its id.
type ConnectionApproved struct {
	ClientID int
}

func (ConnectionApproved) Type() MessageType { return MsgConnectionApproved }

func (p ConnectionApproved) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.ClientID))
	return w.b
}

func (p *ConnectionApproved) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		if r.num == 1 {
			p.ClientID = int(r.int())
		}
	}
	return r.err
}

// PlayerInfo binds a player name to a client.
type PlayerInfo struct {
	ClientID int
	Name     string
}

func (PlayerInfo) Type() MessageType { return MsgPlayerInfo }

func (p PlayerInfo) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.ClientID))
	w.string(2, p.Name)
	return w.b
}

func (p *PlayerInfo) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.ClientID = int(r.int())
		case 2:
			p.Name = r.string()
		}
	}
	return r.err
}

// RequestWorldInfo asks for a WorldInfo reply.
type RequestWorldInfo struct{}

func (RequestWorldInfo) Type() MessageType { return MsgRequestWorldInfo }

func (RequestWorldInfo) MarshalBody() []byte { return nil }

func (*RequestWorldInfo) UnmarshalBody([]byte) error { return nil }

// WorldInfo is the full world header sent on request and on every full sync.
type WorldInfo struct {
	Time      float64
	DayTime   bool
	MoonPhase int
	Width     int
	Height    int
	SpawnX    int
	SpawnY    int
	Name      string
}

func (WorldInfo) Type() MessageType { return MsgWorldInfo }

func (p WorldInfo) MarshalBody() []byte {
	var w fieldWriter
	w.float64(1, p.Time)
	w.bool(2, p.DayTime)
	w.int(3, int64(p.MoonPhase))
	w.int(4, int64(p.Width))
	w.int(5, int64(p.Height))
	w.int(6, int64(p.SpawnX))
	w.int(7, int64(p.SpawnY))
	w.string(8, p.Name)
	return w.b
}

func (p *WorldInfo) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.Time = r.float64()
		case 2:
			p.DayTime = r.bool()
		case 3:
			p.MoonPhase = int(r.int())
		case 4:
			p.Width = int(r.int())
		case 5:
			p.Height = int(r.int())
		case 6:
			p.SpawnX = int(r.int())
		case 7:
			p.SpawnY = int(r.int())
		case 8:
			p.Name = r.string()
		}
	}
	return r.err
}

// RequestTileSection asks for the tiles around a point.
type RequestTileSection struct {
	X, Y int
}

func (RequestTileSection) Type() MessageType { return MsgRequestTileSection }

func (p RequestTileSection) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.X))
	w.int(2, int64(p.Y))
	return w.b
}

func (p *RequestTileSection) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.X = int(r.int())
		case 2:
			p.Y = int(r.int())
		}
	}
	return r.err
}

// PlayerUpdate carries a player's position and velocity.
type PlayerUpdate struct {
	ClientID int
	X, Y     float32
	VX, VY   float32
}

func (PlayerUpdate) Type() MessageType { return MsgPlayerUpdate }

func (p PlayerUpdate) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.ClientID))
	w.float32(2, p.X)
	w.float32(3, p.Y)
	w.float32(4, p.VX)
	w.float32(5, p.VY)
	return w.b
}

func (p *PlayerUpdate) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.ClientID = int(r.int())
		case 2:
			p.X = r.float32()
		case 3:
			p.Y = r.float32()
		case 4:
			p.VX = r.float32()
		case 5:
			p.VY = r.float32()
		}
	}
	return r.err
}

// PlayerActive announces a player entering or leaving the world.
type PlayerActive struct {
	ClientID int
	Active   bool
}

func (PlayerActive) Type() MessageType { return MsgPlayerActive }

func (p PlayerActive) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.ClientID))
	w.bool(2, p.Active)
	return w.b
}

func (p *PlayerActive) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.ClientID = int(r.int())
		case 2:
			p.Active = r.bool()
		}
	}
	return r.err
}

// TileAction selects what TileModify does.
type TileAction uint8

const (
	TileKill  TileAction = 0
	TilePlace TileAction = 1
)

// TileModify asks the server to change one tile.
type TileModify struct {
	Action   TileAction
	X, Y     int
	TileType uint8
}

func (TileModify) Type() MessageType { return MsgTileModify }

func (p TileModify) MarshalBody() []byte {
	var w fieldWriter
	w.uint(1, uint64(p.Action))
	w.int(2, int64(p.X))
	w.int(3, int64(p.Y))
	w.uint(4, uint64(p.TileType))
	return w.b
}

func (p *TileModify) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.Action = TileAction(r.uint())
		case 2:
			p.X = int(r.int())
		case 3:
			p.Y = int(r.int())
		case 4:
			p.TileType = uint8(r.uint())
		}
	}
	return r.err
}

// Tile is one cell of a TileSquare.
type Tile struct {
	Active bool
	Type   uint8
	Wall   uint8
	Liquid uint8
	Lava   bool
}

func (t Tile) marshal() []byte {
	var w fieldWriter
	w.bool(1, t.Active)
	w.uint(2, uint64(t.Type))
	w.uint(3, uint64(t.Wall))
	w.uint(4, uint64(t.Liquid))
	w.bool(5, t.Lava)
	return w.b
}

func (t *Tile) unmarshal(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			t.Active = r.bool()
		case 2:
			t.Type = uint8(r.uint())
		case 3:
			t.Wall = uint8(r.uint())
		case 4:
			t.Liquid = uint8(r.uint())
		case 5:
			t.Lava = r.bool()
		}
	}
	return r.err
}

// TileSquare is a size×size block of tiles, row-major from (X, Y).
type TileSquare struct {
	X, Y  int
	Size  int
	Tiles []Tile
}

func (TileSquare) Type() MessageType { return MsgTileSquare }

func (p TileSquare) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.X))
	w.int(2, int64(p.Y))
	w.int(3, int64(p.Size))
	for _, t := range p.Tiles {
		w.message(4, t.marshal())
	}
	return w.b
}

func (p *TileSquare) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.X = int(r.int())
		case 2:
			p.Y = int(r.int())
		case 3:
			p.Size = int(r.int())
		case 4:
			var t Tile
			if err := t.unmarshal(r.bytes); err != nil {
				return err
			}
			p.Tiles = append(p.Tiles, t)
		}
	}
	return r.err
}

// ItemInfo announces a dropped item.
type ItemInfo struct {
	Number int
	X, Y   float32
	VX, VY float32
	Stack  int
	Name   string
}

func (ItemInfo) Type() MessageType { return MsgItemInfo }

func (p ItemInfo) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.Number))
	w.float32(2, p.X)
	w.float32(3, p.Y)
	w.float32(4, p.VX)
	w.float32(5, p.VY)
	w.int(6, int64(p.Stack))
	w.string(7, p.Name)
	return w.b
}

func (p *ItemInfo) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.Number = int(r.int())
		case 2:
			p.X = r.float32()
		case 3:
			p.Y = r.float32()
		case 4:
			p.VX = r.float32()
		case 5:
			p.VY = r.float32()
		case 6:
			p.Stack = int(r.int())
		case 7:
			p.Name = r.string()
		}
	}
	return r.err
}

// ChatMessage is a line of chat. ClientID is ServerClientID for server text.
type ChatMessage struct {
	ClientID int
	Text     string
	Color    uint32
}

func (ChatMessage) Type() MessageType { return MsgChatMessage }

func (p ChatMessage) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.ClientID))
	w.string(2, p.Text)
	w.uint(3, uint64(p.Color))
	return w.b
}

func (p *ChatMessage) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.ClientID = int(r.int())
		case 2:
			p.Text = r.string()
		case 3:
			p.Color = uint32(r.uint())
		}
	}
	return r.err
}

// ProjectileUpdate announces a projectile.
type ProjectileUpdate struct {
	ID        int
	Owner     int
	Kind      int
	X, Y      float32
	VX, VY    float32
	Damage    int
	Knockback float32
}

func (ProjectileUpdate) Type() MessageType { return MsgProjectileUpdate }

func (p ProjectileUpdate) MarshalBody() []byte {
	var w fieldWriter
	w.int(1, int64(p.ID))
	w.int(2, int64(p.Owner))
	w.int(3, int64(p.Kind))
	w.float32(4, p.X)
	w.float32(5, p.Y)
	w.float32(6, p.VX)
	w.float32(7, p.VY)
	w.int(8, int64(p.Damage))
	w.float32(9, p.Knockback)
	return w.b
}

func (p *ProjectileUpdate) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			p.ID = int(r.int())
		case 2:
			p.Owner = int(r.int())
		case 3:
			p.Kind = int(r.int())
		case 4:
			p.X = r.float32()
		case 5:
			p.Y = r.float32()
		case 6:
			p.VX = r.float32()
		case 7:
			p.VY = r.float32()
		case 8:
			p.Damage = int(r.int())
		case 9:
			p.Knockback = r.float32()
		}
	}
	return r.err
}

// RequestPassword asks the client for the server password.
type RequestPassword struct{}

func (RequestPassword) Type() MessageType { return MsgRequestPassword }

func (RequestPassword) MarshalBody() []byte { return nil }

func (*RequestPassword) UnmarshalBody([]byte) error { return nil }

// SendPassword answers RequestPassword.
type SendPassword struct {
	Password string
}

func (SendPassword) Type() MessageType { return MsgSendPassword }

func (p SendPassword) MarshalBody() []byte {
	var w fieldWriter
	w.string(1, p.Password)
	return w.b
}

func (p *SendPassword) UnmarshalBody(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		if r.num == 1 {
			p.Password = r.string()
		}
	}
	return r.err
}
