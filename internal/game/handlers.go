package game

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/transport"
	"github.com/LemmyAI/tileserver/internal/world"
)

const (
	maxNameLength = 20
	maxChatLength = 256
)

// Disconnect reasons sent to clients.
const (
	reasonVersion  = "You are not using the same version as this server."
	reasonPassword = "Incorrect password."
	reasonName     = "Invalid player name."
)

// HandlerService applies client messages to connection state and the world.
//
// A returned error means the client broke the protocol and must be dropped.
type HandlerService struct {
	config Config
	sender *Sender
	world  world.World
	editor world.Editor
	log    *zap.Logger
}

// NewHandlerService creates the handlers. Tile edits are accepted only when
// w also implements world.Editor.
func NewHandlerService(config Config, sender *Sender, w world.World, log *zap.Logger) *HandlerService {
	if log == nil {
		log = zap.NewNop()
	}
	h := &HandlerService{
		config: config,
		sender: sender,
		world:  w,
		log:    log,
	}
	if ed, ok := w.(world.Editor); ok {
		h.editor = ed
	}
	return h
}

// Dispatch handles one message from c.
func (h *HandlerService) Dispatch(msg protocol.Message, c *transport.Connection) error {
	if !c.State().Approved && msg.Type != protocol.MsgConnectRequest && msg.Type != protocol.MsgSendPassword {
		return fmt.Errorf("%w: %s", ErrNotApproved, msg.Type)
	}

	switch msg.Type {
	case protocol.MsgConnectRequest:
		return h.handleConnectRequest(msg, c)
	case protocol.MsgSendPassword:
		return h.handleSendPassword(msg, c)
	case protocol.MsgPlayerInfo:
		return h.handlePlayerInfo(msg, c)
	case protocol.MsgRequestWorldInfo:
		return h.sender.SendToClient(c, h.sender.Builder().WorldInfo(h.world.Info()))
	case protocol.MsgRequestTileSection:
		return h.handleRequestTileSection(msg, c)
	case protocol.MsgPlayerUpdate:
		return h.handlePlayerUpdate(msg, c)
	case protocol.MsgTileModify:
		return h.handleTileModify(msg, c)
	case protocol.MsgChatMessage:
		return h.handleChat(msg, c)
	default:
		h.log.Debug("ignoring message",
			zap.Int("client", c.ID),
			zap.Stringer("type", msg.Type),
			zap.Int("len", len(msg.Body)))
		return nil
	}
}

func decode(msg protocol.Message, p protocol.Unmarshaler) error {
	if err := protocol.Unmarshal(msg, p); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	return nil
}

func (h *HandlerService) handleConnectRequest(msg protocol.Message, c *transport.Connection) error {
	var req protocol.ConnectRequest
	if err := decode(msg, &req); err != nil {
		return err
	}

	st := c.State()
	if st.Approved || st.AwaitingPassword {
		return fmt.Errorf("%w: repeated %s", ErrUnexpectedMessage, msg.Type)
	}
	if req.Version != protocol.ServerVersion {
		h.sender.SendToClient(c, h.sender.Builder().Disconnect(reasonVersion))
		return fmt.Errorf("%w: got %q, want %q", ErrVersionMismatch, req.Version, protocol.ServerVersion)
	}

	if h.config.Password != "" {
		c.UpdateState(func(s *transport.ClientState) { s.AwaitingPassword = true })
		return h.sender.SendToClient(c, h.sender.Builder().RequestPassword())
	}
	return h.approve(c)
}

func (h *HandlerService) handleSendPassword(msg protocol.Message, c *transport.Connection) error {
	var req protocol.SendPassword
	if err := decode(msg, &req); err != nil {
		return err
	}

	if !c.State().AwaitingPassword {
		return fmt.Errorf("%w: %s without a password request", ErrUnexpectedMessage, msg.Type)
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.config.Password)) != 1 {
		h.sender.SendToClient(c, h.sender.Builder().Disconnect(reasonPassword))
		return ErrBadPassword
	}

	c.UpdateState(func(s *transport.ClientState) { s.AwaitingPassword = false })
	return h.approve(c)
}

func (h *HandlerService) approve(c *transport.Connection) error {
	c.UpdateState(func(s *transport.ClientState) { s.Approved = true })
	h.log.Debug("connection approved", zap.Int("client", c.ID), zap.Stringer("remote", c.RemoteAddr))
	return h.sender.SendToClient(c, h.sender.Builder().ConnectionApproved(c.ID))
}

func (h *HandlerService) handlePlayerInfo(msg protocol.Message, c *transport.Connection) error {
	var info protocol.PlayerInfo
	if err := decode(msg, &info); err != nil {
		return err
	}

	name := strings.TrimSpace(info.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		h.sender.SendToClient(c, h.sender.Builder().Disconnect(reasonName))
		return fmt.Errorf("%w: %q", ErrInvalidName, info.Name)
	}

	joined := !c.State().Active
	var spawn world.Info
	if joined {
		spawn = h.world.Info()
	}
	c.UpdateState(func(s *transport.ClientState) {
		s.Name = name
		if joined {
			s.Active = true
			s.X = float32(spawn.SpawnX * world.TileSize)
			s.Y = float32(spawn.SpawnY * world.TileSize)
		}
	})

	st := c.State()
	player := PlayerState{ID: c.ID, Name: st.Name, Position: Vec2{X: st.X, Y: st.Y}}
	b := h.sender.Builder()
	h.sender.SendToOtherClients(b.PlayerInfo(player), c)
	h.sender.SendToOtherClients(b.PlayerUpdate(player), c)
	h.sender.SendToAllClients(b.PlayerActive(c.ID, true))

	if !joined {
		return nil
	}
	h.log.Info("player joined", zap.Int("client", c.ID), zap.String("name", name))
	h.sender.SendToOtherClients(b.Chat(protocol.ServerClientID, name+" has joined.", PresenceChatColor), c)
	if h.config.MOTD != "" {
		return h.sender.SendToClient(c, b.Chat(protocol.ServerClientID, h.config.MOTD, ServerChatColor))
	}
	return nil
}

func (h *HandlerService) handleRequestTileSection(msg protocol.Message, c *transport.Connection) error {
	var req protocol.RequestTileSection
	if err := decode(msg, &req); err != nil {
		return err
	}

	size := h.config.SectionSize
	if size <= 0 {
		size = DefaultConfig().SectionSize
	}
	sq := h.world.TileSquare(req.X-size/2, req.Y-size/2, size)
	return h.sender.SendToClient(c, h.sender.Builder().TileSquare(sq))
}

func (h *HandlerService) handlePlayerUpdate(msg protocol.Message, c *transport.Connection) error {
	var upd protocol.PlayerUpdate
	if err := decode(msg, &upd); err != nil {
		return err
	}

	if !c.State().Active {
		h.log.Debug("player update before player info", zap.Int("client", c.ID))
		return nil
	}
	// The sender id is implied by the connection.
	c.UpdateState(func(s *transport.ClientState) {
		s.X, s.Y = upd.X, upd.Y
		s.VX, s.VY = upd.VX, upd.VY
	})
	return nil
}

func (h *HandlerService) handleTileModify(msg protocol.Message, c *transport.Connection) error {
	var mod protocol.TileModify
	if err := decode(msg, &mod); err != nil {
		return err
	}
	if h.editor == nil {
		return nil
	}

	var err error
	switch mod.Action {
	case protocol.TileKill:
		err = h.editor.KillTile(mod.X, mod.Y)
	case protocol.TilePlace:
		err = h.editor.PlaceTile(mod.X, mod.Y, mod.TileType)
	default:
		h.log.Debug("unknown tile action", zap.Int("client", c.ID), zap.Uint8("action", uint8(mod.Action)))
		return nil
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, world.ErrOutOfBounds):
		h.log.Debug("tile edit out of bounds", zap.Int("client", c.ID), zap.Int("x", mod.X), zap.Int("y", mod.Y))
		return nil
	default:
		// Rejected edit: resend the tile so the client rolls back its guess.
		h.log.Debug("tile edit rejected", zap.Int("client", c.ID), zap.Error(err))
		return h.sender.SendToClient(c, h.sender.Builder().TileSquare(h.world.TileSquare(mod.X, mod.Y, 1)))
	}
}

func (h *HandlerService) handleChat(msg protocol.Message, c *transport.Connection) error {
	var chat protocol.ChatMessage
	if err := decode(msg, &chat); err != nil {
		return err
	}

	text := strings.TrimSpace(chat.Text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		text = string([]rune(text)[:maxChatLength])
	}
	h.sender.SendChatToAllClients(c.ID, text, chat.Color)
	return nil
}
