package game

import (
	"github.com/LemmyAI/tileserver/internal/transport"
)

// PlayerState is a point-in-time copy of one player.
type PlayerState struct {
	ID       int
	Name     string
	Position Vec2
	Velocity Vec2
}

// Vec2 is a 2D vector.
type Vec2 struct {
	X float32
	Y float32
}

// ConnectionSource lists the registered connections.
type ConnectionSource interface {
	Snapshot() []*transport.Connection
}

// Players returns the approved, active players among conns, ordered by id.
func Players(conns []*transport.Connection) []PlayerState {
	players := make([]PlayerState, 0, len(conns))
	for _, c := range conns {
		st := c.State()
		if !st.Approved || !st.Active {
			continue
		}
		players = append(players, PlayerState{
			ID:       c.ID,
			Name:     st.Name,
			Position: Vec2{X: st.X, Y: st.Y},
			Velocity: Vec2{X: st.VX, Y: st.VY},
		})
	}
	return players
}
