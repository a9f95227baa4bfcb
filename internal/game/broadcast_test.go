package game

import (
	"testing"

	"github.com/LemmyAI/tileserver/internal/metrics"
	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/transport"
	"github.com/LemmyAI/tileserver/internal/world"
)

func TestSendToAllClients(t *testing.T) {
	reg := transport.NewRegistry(0)
	m := metrics.New()
	sender := NewSender(reg, newTestWorld(), m, nil)
	peers := []*testPeer{newTestPeer(t, reg), newTestPeer(t, reg), newTestPeer(t, reg)}

	n := sender.SendToAllClients(sender.Builder().Chat(protocol.ServerClientID, "hello", ServerChatColor))
	if n != 3 {
		t.Errorf("expected 3 deliveries, got %d", n)
	}
	for _, p := range peers {
		p.expect(t, protocol.MsgChatMessage)
	}
	if m.FramesOut.Load() != 3 {
		t.Errorf("expected 3 frames out, got %d", m.FramesOut.Load())
	}
}

func TestSendToAllClientsFaultIsolation(t *testing.T) {
	reg := transport.NewRegistry(0)
	m := metrics.New()
	sender := NewSender(reg, newTestWorld(), m, nil)
	a, broken, c := newTestPeer(t, reg), newTestPeer(t, reg), newTestPeer(t, reg)
	broken.conn.Close()

	n := sender.SendToAllClients(sender.Builder().Chat(1, "hi", 0))
	if n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	a.expect(t, protocol.MsgChatMessage)
	c.expect(t, protocol.MsgChatMessage)

	if !broken.conn.MarkedForRemoval() {
		t.Error("expected the failed connection to be flagged for removal")
	}
	if a.conn.MarkedForRemoval() || c.conn.MarkedForRemoval() {
		t.Error("expected healthy connections not to be flagged")
	}
	if m.SendFailed.Load() != 1 {
		t.Errorf("expected 1 send failure, got %d", m.SendFailed.Load())
	}
}

func TestSendToOtherClients(t *testing.T) {
	reg := transport.NewRegistry(0)
	sender := NewSender(reg, newTestWorld(), nil, nil)
	a, b := newTestPeer(t, reg), newTestPeer(t, reg)

	sender.SendToOtherClients(sender.Builder().PlayerActive(a.conn.ID, true), a.conn)

	b.expect(t, protocol.MsgPlayerActive)
	a.expectNone(t)
}

func TestSendToClientError(t *testing.T) {
	reg := transport.NewRegistry(0)
	sender := NewSender(reg, newTestWorld(), nil, nil)
	p := newTestPeer(t, reg)
	p.conn.Close()

	if err := sender.SendToClient(p.conn, sender.Builder().RequestPassword()); err == nil {
		t.Error("expected an error sending to a closed connection")
	}
}

func TestSendWorldUpdateToAllClients(t *testing.T) {
	reg := transport.NewRegistry(0)
	sender := NewSender(reg, newTestWorld(), nil, nil)
	p := newTestPeer(t, reg)

	sender.SendWorldUpdateToAllClients()

	var info protocol.WorldInfo
	if err := protocol.Unmarshal(p.expect(t, protocol.MsgWorldInfo), &info); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if info.Name != "test" || info.Width != 32 {
		t.Errorf("unexpected world info %+v", info)
	}
}

func TestSyncPlayers(t *testing.T) {
	reg := transport.NewRegistry(0)
	sender := NewSender(reg, newTestWorld(), nil, nil)
	a, b, pending := newTestPeer(t, reg), newTestPeer(t, reg), newTestPeer(t, reg)
	activate(a, "alpha", 10, 20)
	activate(b, "beta", 30, 40)

	sender.SyncPlayers()

	for _, p := range []*testPeer{a, b, pending} {
		for i := 0; i < 2; i++ {
			p.expect(t, protocol.MsgPlayerInfo)
			p.expect(t, protocol.MsgPlayerUpdate)
			p.expect(t, protocol.MsgPlayerActive)
		}
		p.expectNone(t)
	}
}

func TestSendPlayerDeltas(t *testing.T) {
	reg := transport.NewRegistry(0)
	sender := NewSender(reg, newTestWorld(), nil, nil)
	a, b := newTestPeer(t, reg), newTestPeer(t, reg)
	activate(a, "alpha", 10, 20)
	activate(b, "beta", 30, 40)

	sender.SyncPlayers()
	for i := 0; i < 6; i++ {
		<-a.frames
		<-b.frames
	}

	sender.SendPlayerDeltas()
	a.expectNone(t)

	a.conn.UpdateState(func(s *transport.ClientState) { s.X = 50 })
	sender.SendPlayerDeltas()

	var upd protocol.PlayerUpdate
	if err := protocol.Unmarshal(b.expect(t, protocol.MsgPlayerUpdate), &upd); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if upd.ClientID != a.conn.ID || upd.X != 50 {
		t.Errorf("unexpected update %+v", upd)
	}
	b.expectNone(t)
}

func TestSendPlayerDisconnectedToOtherClients(t *testing.T) {
	reg := transport.NewRegistry(0)
	sender := NewSender(reg, newTestWorld(), nil, nil)
	leaver, stayer := newTestPeer(t, reg), newTestPeer(t, reg)
	activate(leaver, "alpha", 0, 0)

	sender.SendPlayerDisconnectedToOtherClients(leaver.conn)

	var active protocol.PlayerActive
	if err := protocol.Unmarshal(stayer.expect(t, protocol.MsgPlayerActive), &active); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if active.ClientID != leaver.conn.ID || active.Active {
		t.Errorf("unexpected notice %+v", active)
	}
	stayer.expect(t, protocol.MsgChatMessage)
	leaver.expectNone(t)
}

func TestEventBroadcasts(t *testing.T) {
	reg := transport.NewRegistry(0)
	sender := NewSender(reg, newTestWorld(), nil, nil)
	p := newTestPeer(t, reg)

	sender.SendItemToAllClients(world.Item{ID: 4, Stack: 1, Name: "Dirt Block"})
	sender.SendProjectileMessageToAllClients(world.Projectile{ID: 2, Kind: world.ProjectileSandBall})
	sender.SendTileSquareMessageToAllClients(world.TileSquare{X: 1, Y: 2, Size: 1, Tiles: []world.Tile{{Active: true}}})

	var item protocol.ItemInfo
	protocol.Unmarshal(p.expect(t, protocol.MsgItemInfo), &item)
	if item.Number != 4 || item.Name != "Dirt Block" {
		t.Errorf("unexpected item %+v", item)
	}
	p.expect(t, protocol.MsgProjectileUpdate)
	var sq protocol.TileSquare
	protocol.Unmarshal(p.expect(t, protocol.MsgTileSquare), &sq)
	if sq.X != 1 || sq.Y != 2 || len(sq.Tiles) != 1 || !sq.Tiles[0].Active {
		t.Errorf("unexpected square %+v", sq)
	}
}

func BenchmarkSendToAllClients(b *testing.B) {
	reg := transport.NewRegistry(0)
	sender := NewSender(reg, newTestWorld(), nil, nil)
	msg := sender.Builder().Chat(protocol.ServerClientID, "bench", 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sender.SendToAllClients(msg)
	}
}
