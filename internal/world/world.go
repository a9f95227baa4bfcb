// Package world defines the simulation consumed by the server and a small
// sandbox tile world that implements it.
package world

import "errors"

// TileSize is the edge of one tile in world pixels.
const TileSize = 16

var (
	ErrOutOfBounds  = errors.New("tile out of bounds")
	ErrNoTile       = errors.New("no tile at position")
	ErrTileOccupied = errors.New("tile already occupied")
)

// World is advanced by the simulation clock and announces changes through
// typed event streams.
type World interface {
	Update(delta float64)
	Info() Info
	TileSquare(x, y, size int) TileSquare

	ItemCreated() Source[ItemCreated]
	ProjectileCreated() Source[ProjectileCreated]
	NewTileSquare() Source[TileSquareChanged]
}

// Editor is implemented by worlds that clients may modify.
type Editor interface {
	KillTile(x, y int) error
	PlaceTile(x, y int, tileType uint8) error
}

// Info is the world header sent to clients.
type Info struct {
	Name      string
	Time      float64
	DayTime   bool
	MoonPhase int
	Width     int
	Height    int
	SpawnX    int
	SpawnY    int
}

// Tile is one cell.
type Tile struct {
	Active bool
	Type   uint8
	Wall   uint8
	Liquid uint8
	Lava   bool
}

// TileSquare is a size×size block of tiles, row-major from (X, Y).
type TileSquare struct {
	X, Y  int
	Size  int
	Tiles []Tile
}

// Vec2 is a position or velocity in world pixels.
type Vec2 struct {
	X, Y float32
}

// Item is a dropped item.
type Item struct {
	ID       int
	Position Vec2
	Velocity Vec2
	Stack    int
	Name     string
}

// Projectile is a moving object such as falling sand.
type Projectile struct {
	ID        int
	Owner     int
	Kind      int
	Position  Vec2
	Velocity  Vec2
	Damage    int
	Knockback float32
}

// ItemCreated is published when an item drops.
type ItemCreated struct {
	Item Item
}

// ProjectileCreated is published when a projectile spawns.
type ProjectileCreated struct {
	Projectile Projectile
}

// TileSquareChanged is published after tiles change.
type TileSquareChanged struct {
	Square TileSquare
}
