package server

import (
	"github.com/LemmyAI/tileserver/internal/world"
)

// subscribeWorld forwards world events to every client.
func (s *Server) subscribeWorld() {
	s.subs = append(s.subs,
		s.world.ItemCreated().Subscribe(func(ev world.ItemCreated) {
			s.sender.SendItemToAllClients(ev.Item)
		}),
		s.world.ProjectileCreated().Subscribe(func(ev world.ProjectileCreated) {
			s.sender.SendProjectileMessageToAllClients(ev.Projectile)
		}),
		s.world.NewTileSquare().Subscribe(func(ev world.TileSquareChanged) {
			s.sender.SendTileSquareMessageToAllClients(ev.Square)
		}),
	)
}
