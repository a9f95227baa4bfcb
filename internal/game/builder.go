package game

import (
	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/world"
)

// MessageBuilder turns domain values into protocol messages.
type MessageBuilder struct{}

func (MessageBuilder) WorldInfo(info world.Info) protocol.Message {
	return protocol.New(protocol.WorldInfo{
		Time:      info.Time,
		DayTime:   info.DayTime,
		MoonPhase: info.MoonPhase,
		Width:     info.Width,
		Height:    info.Height,
		SpawnX:    info.SpawnX,
		SpawnY:    info.SpawnY,
		Name:      info.Name,
	})
}

func (MessageBuilder) TileSquare(sq world.TileSquare) protocol.Message {
	tiles := make([]protocol.Tile, len(sq.Tiles))
	for i, t := range sq.Tiles {
		tiles[i] = protocol.Tile{Active: t.Active, Type: t.Type, Wall: t.Wall, Liquid: t.Liquid, Lava: t.Lava}
	}
	return protocol.New(protocol.TileSquare{X: sq.X, Y: sq.Y, Size: sq.Size, Tiles: tiles})
}

func (MessageBuilder) Item(item world.Item) protocol.Message {
	return protocol.New(protocol.ItemInfo{
		Number: item.ID,
		X:      item.Position.X,
		Y:      item.Position.Y,
		VX:     item.Velocity.X,
		VY:     item.Velocity.Y,
		Stack:  item.Stack,
		Name:   item.Name,
	})
}

func (MessageBuilder) Projectile(p world.Projectile) protocol.Message {
	return protocol.New(protocol.ProjectileUpdate{
		ID:        p.ID,
		Owner:     p.Owner,
		Kind:      p.Kind,
		X:         p.Position.X,
		Y:         p.Position.Y,
		VX:        p.Velocity.X,
		VY:        p.Velocity.Y,
		Damage:    p.Damage,
		Knockback: p.Knockback,
	})
}

func (MessageBuilder) PlayerInfo(p PlayerState) protocol.Message {
	return protocol.New(protocol.PlayerInfo{ClientID: p.ID, Name: p.Name})
}

func (MessageBuilder) PlayerUpdate(p PlayerState) protocol.Message {
	return protocol.New(protocol.PlayerUpdate{
		ClientID: p.ID,
		X:        p.Position.X,
		Y:        p.Position.Y,
		VX:       p.Velocity.X,
		VY:       p.Velocity.Y,
	})
}

func (MessageBuilder) PlayerActive(id int, active bool) protocol.Message {
	return protocol.New(protocol.PlayerActive{ClientID: id, Active: active})
}

// Chat builds a chat line. Use protocol.ServerClientID for server text.
func (MessageBuilder) Chat(clientID int, text string, color uint32) protocol.Message {
	return protocol.New(protocol.ChatMessage{ClientID: clientID, Text: text, Color: color})
}

func (MessageBuilder) Disconnect(reason string) protocol.Message {
	return protocol.New(protocol.Disconnect{Reason: reason})
}

func (MessageBuilder) ConnectionApproved(id int) protocol.Message {
	return protocol.New(protocol.ConnectionApproved{ClientID: id})
}

func (MessageBuilder) RequestPassword() protocol.Message {
	return protocol.New(protocol.RequestPassword{})
}
