package game

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/metrics"
	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/transport"
	"github.com/LemmyAI/tileserver/internal/world"
)

// Chat colors, 0xRRGGBB.
const (
	ServerChatColor   uint32 = 0xFFF014
	PresenceChatColor uint32 = 0xFFAA00
)

// Sender fans messages out to registered connections.
//
// Every message is encoded once per call. A connection whose send fails is
// flagged for removal and skipped; the rest of the fan-out continues.
type Sender struct {
	conns   ConnectionSource
	world   world.World
	builder MessageBuilder
	metrics *metrics.Metrics
	log     *zap.Logger

	deltaMu sync.Mutex
	deltas  *DeltaTracker
}

// NewSender creates a sender over conns.
func NewSender(conns ConnectionSource, w world.World, m *metrics.Metrics, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{
		conns:   conns,
		world:   w,
		metrics: m,
		log:     log,
		deltas:  NewDeltaTracker(),
	}
}

// Builder returns the message builder.
func (s *Sender) Builder() MessageBuilder {
	return s.builder
}

// SendToClient sends msg to one connection.
func (s *Sender) SendToClient(c *transport.Connection, msg protocol.Message) error {
	frame := protocol.Encode(msg)
	if err := s.send(c, frame); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Type, c, err)
	}
	return nil
}

// SendToAllClients sends msg to every connection and returns how many it
// was queued for.
func (s *Sender) SendToAllClients(msg protocol.Message) int {
	return s.fanOut(nil, protocol.Encode(msg))
}

// SendToOtherClients sends msg to every connection except one.
func (s *Sender) SendToOtherClients(msg protocol.Message, except *transport.Connection) int {
	return s.fanOut(except, protocol.Encode(msg))
}

// SendWorldUpdateToAllClients broadcasts the world header.
func (s *Sender) SendWorldUpdateToAllClients() {
	s.SendToAllClients(s.builder.WorldInfo(s.world.Info()))
}

// SyncPlayers broadcasts the full state of every active player.
func (s *Sender) SyncPlayers() {
	players := Players(s.conns.Snapshot())

	s.deltaMu.Lock()
	s.deltas.ComputeDelta(players, true)
	s.deltaMu.Unlock()

	frames := make([][]byte, 0, 3*len(players))
	for _, p := range players {
		frames = append(frames,
			protocol.Encode(s.builder.PlayerInfo(p)),
			protocol.Encode(s.builder.PlayerUpdate(p)),
			protocol.Encode(s.builder.PlayerActive(p.ID, true)),
		)
	}
	s.fanOut(nil, frames...)
}

// SendPlayerDeltas broadcasts the position of players that moved since the
// last delta or full sync.
func (s *Sender) SendPlayerDeltas() {
	players := Players(s.conns.Snapshot())

	s.deltaMu.Lock()
	changed, _ := s.deltas.ComputeDelta(players, false)
	s.deltaMu.Unlock()

	if len(changed) == 0 {
		return
	}
	frames := make([][]byte, len(changed))
	for i, p := range changed {
		frames[i] = protocol.Encode(s.builder.PlayerUpdate(p))
	}
	s.fanOut(nil, frames...)
}

func (s *Sender) SendTileSquareMessageToAllClients(sq world.TileSquare) {
	s.SendToAllClients(s.builder.TileSquare(sq))
}

func (s *Sender) SendItemToAllClients(item world.Item) {
	s.SendToAllClients(s.builder.Item(item))
}

func (s *Sender) SendProjectileMessageToAllClients(p world.Projectile) {
	s.SendToAllClients(s.builder.Projectile(p))
}

// SendPlayerDisconnectedToOtherClients tells everyone else that c left.
func (s *Sender) SendPlayerDisconnectedToOtherClients(c *transport.Connection) {
	frames := [][]byte{protocol.Encode(s.builder.PlayerActive(c.ID, false))}
	if st := c.State(); st.Active && st.Name != "" {
		frames = append(frames, protocol.Encode(s.builder.Chat(protocol.ServerClientID, st.Name+" has left.", PresenceChatColor)))
	}
	s.fanOut(c, frames...)
}

// SendChatToAllClients broadcasts a chat line.
func (s *Sender) SendChatToAllClients(clientID int, text string, color uint32) {
	s.SendToAllClients(s.builder.Chat(clientID, text, color))
}

// fanOut queues frames, in order, for every connection but except.
func (s *Sender) fanOut(except *transport.Connection, frames ...[]byte) int {
	delivered := 0
	for _, c := range s.conns.Snapshot() {
		if c == except {
			continue
		}
		ok := true
		for _, frame := range frames {
			if err := s.send(c, frame); err != nil {
				ok = false
				break
			}
		}
		if ok {
			delivered++
		}
	}
	return delivered
}

func (s *Sender) send(c *transport.Connection, frame []byte) error {
	if err := c.Send(frame); err != nil {
		if !c.MarkedForRemoval() {
			s.log.Warn("send failed, dropping client",
				zap.Int("client", c.ID),
				zap.Stringer("session", c.Session),
				zap.Error(err))
		}
		c.MarkForRemoval()
		s.metrics.SendFailure()
		return err
	}
	s.metrics.FrameOut(len(frame))
	return nil
}
