package world

import (
	"math/rand/v2"
	"sync"
)

const (
	TileDirt  uint8 = 0
	TileStone uint8 = 1
	TileSand  uint8 = 53

	// ProjectileSandBall is the projectile kind of falling sand.
	ProjectileSandBall = 31

	// WorldOwner owns projectiles the world spawns itself.
	WorldOwner = 255

	gravity      = 0.4
	maxFallSpeed = 10
)

var tileNames = map[uint8]string{
	TileDirt:  "Dirt Block",
	TileStone: "Stone Block",
	TileSand:  "Sand Block",
}

// Config holds sandbox world configuration.
type Config struct {
	Name         string  `yaml:"name"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	Seed         uint64  `yaml:"seed"`
	SurfaceLevel int     `yaml:"surface_level"` // Mean ground height, in tiles from the top
	DayLength    float64 `yaml:"day_length"`    // Ticks of daylight
	NightLength  float64 `yaml:"night_length"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:         "Sandbox",
		Width:        400,
		Height:       200,
		Seed:         1,
		SurfaceLevel: 60,
		DayLength:    54000,
		NightLength:  32400,
	}
}

// Sandbox is an in-memory tile world with a day/night cycle, dropped items
// and falling sand.
type Sandbox struct {
	mu        sync.Mutex
	cfg       Config
	tiles     []Tile
	surface   []int
	time      float64
	dayTime   bool
	moonPhase int

	nextItem       int
	nextProjectile int
	falling        []*Projectile

	items       *Stream[ItemCreated]
	projectiles *Stream[ProjectileCreated]
	squares     *Stream[TileSquareChanged]
}

// NewSandbox generates a world from cfg.Seed.
func NewSandbox(cfg Config) *Sandbox {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		def := DefaultConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.SurfaceLevel <= 0 || cfg.SurfaceLevel >= cfg.Height {
		cfg.SurfaceLevel = cfg.Height / 3
	}

	s := &Sandbox{
		cfg:         cfg,
		tiles:       make([]Tile, cfg.Width*cfg.Height),
		surface:     make([]int, cfg.Width),
		dayTime:     true,
		items:       NewStream[ItemCreated](),
		projectiles: NewStream[ProjectileCreated](),
		squares:     NewStream[TileSquareChanged](),
	}
	s.generate()
	return s
}

// generate lays down a random-walk surface with dirt over stone and the
// occasional sand dune.
func (s *Sandbox) generate() {
	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))

	h := s.cfg.SurfaceLevel
	dune := 0
	for x := 0; x < s.cfg.Width; x++ {
		h += rng.IntN(3) - 1
		h = max(1, min(h, s.cfg.Height-1))
		s.surface[x] = h

		if dune == 0 && rng.IntN(40) == 0 {
			dune = 4 + rng.IntN(8)
		}

		for y := h; y < s.cfg.Height; y++ {
			t := &s.tiles[y*s.cfg.Width+x]
			t.Active = true
			switch {
			case dune > 0 && y < h+3:
				t.Type = TileSand
			case y < h+10:
				t.Type = TileDirt
				t.Wall = 2
			default:
				t.Type = TileStone
			}
		}
		if dune > 0 {
			dune--
		}
	}
}

func (s *Sandbox) ItemCreated() Source[ItemCreated]             { return s.items }
func (s *Sandbox) ProjectileCreated() Source[ProjectileCreated] { return s.projectiles }
func (s *Sandbox) NewTileSquare() Source[TileSquareChanged]     { return s.squares }

// Info returns the world header.
func (s *Sandbox) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	spawnX := s.cfg.Width / 2
	return Info{
		Name:      s.cfg.Name,
		Time:      s.time,
		DayTime:   s.dayTime,
		MoonPhase: s.moonPhase,
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		SpawnX:    spawnX,
		SpawnY:    max(0, s.surface[spawnX]-3),
	}
}

// Update advances the clock and moves falling sand by delta ticks.
func (s *Sandbox) Update(delta float64) {
	var changed []TileSquareChanged

	s.mu.Lock()
	s.time += delta
	switch {
	case s.dayTime && s.time >= s.cfg.DayLength:
		s.dayTime = false
		s.time = 0
	case !s.dayTime && s.time >= s.cfg.NightLength:
		s.dayTime = true
		s.time = 0
		s.moonPhase = (s.moonPhase + 1) % 8
	}

	still := s.falling[:0]
	for _, p := range s.falling {
		p.Velocity.Y = min(p.Velocity.Y+float32(gravity*delta), maxFallSpeed)
		p.Position.Y += p.Velocity.Y * float32(delta)

		x := int(p.Position.X) / TileSize
		y := int(p.Position.Y) / TileSize
		if y+1 < s.cfg.Height && !s.active(x, y+1) {
			still = append(still, p)
			continue
		}
		// Settle as a sand tile in the first free cell.
		for y >= 0 && s.active(x, y) {
			y--
		}
		if y >= 0 && s.inBounds(x, y) {
			t := s.at(x, y)
			t.Active = true
			t.Type = TileSand
			changed = append(changed, TileSquareChanged{Square: s.square(x, y, 1)})
		}
	}
	s.falling = still
	s.mu.Unlock()

	for _, ev := range changed {
		s.squares.Publish(ev)
	}
}

// TileSquare returns a copy of the size×size block at (x, y). Cells outside
// the world are empty.
func (s *Sandbox) TileSquare(x, y, size int) TileSquare {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.square(x, y, size)
}

// KillTile removes a tile, dropping it as an item. Sand resting on it starts
// to fall.
func (s *Sandbox) KillTile(x, y int) error {
	s.mu.Lock()
	if !s.inBounds(x, y) {
		s.mu.Unlock()
		return ErrOutOfBounds
	}
	t := s.at(x, y)
	if !t.Active {
		s.mu.Unlock()
		return ErrNoTile
	}
	kind := t.Type
	t.Active = false

	s.nextItem++
	item := Item{
		ID:       s.nextItem,
		Position: Vec2{X: float32(x*TileSize + TileSize/2), Y: float32(y*TileSize + TileSize/2)},
		Stack:    1,
		Name:     tileNames[kind],
	}
	squares := []TileSquareChanged{{Square: s.square(x, y, 1)}}

	var proj *Projectile
	if s.active(x, y-1) && s.at(x, y-1).Type == TileSand {
		s.at(x, y-1).Active = false
		s.nextProjectile++
		proj = &Projectile{
			ID:       s.nextProjectile,
			Owner:    WorldOwner,
			Kind:     ProjectileSandBall,
			Position: Vec2{X: float32(x*TileSize + TileSize/2), Y: float32((y-1)*TileSize + TileSize/2)},
			Damage:   10,
		}
		s.falling = append(s.falling, proj)
		squares = append(squares, TileSquareChanged{Square: s.square(x, y-1, 1)})
	}
	var spawned Projectile
	if proj != nil {
		spawned = *proj
	}
	s.mu.Unlock()

	for _, ev := range squares {
		s.squares.Publish(ev)
	}
	s.items.Publish(ItemCreated{Item: item})
	if proj != nil {
		s.projectiles.Publish(ProjectileCreated{Projectile: spawned})
	}
	return nil
}

// PlaceTile puts a tile into an empty cell.
func (s *Sandbox) PlaceTile(x, y int, tileType uint8) error {
	s.mu.Lock()
	if !s.inBounds(x, y) {
		s.mu.Unlock()
		return ErrOutOfBounds
	}
	t := s.at(x, y)
	if t.Active {
		s.mu.Unlock()
		return ErrTileOccupied
	}
	t.Active = true
	t.Type = tileType
	sq := s.square(x, y, 1)
	s.mu.Unlock()

	s.squares.Publish(TileSquareChanged{Square: sq})
	return nil
}

// Falling returns the number of projectiles still in flight.
func (s *Sandbox) Falling() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.falling)
}

func (s *Sandbox) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.cfg.Width && y < s.cfg.Height
}

// at returns the tile at (x, y), which must be in bounds.
func (s *Sandbox) at(x, y int) *Tile {
	return &s.tiles[y*s.cfg.Width+x]
}

func (s *Sandbox) active(x, y int) bool {
	return s.inBounds(x, y) && s.at(x, y).Active
}

func (s *Sandbox) square(x, y, size int) TileSquare {
	if size < 0 {
		size = 0
	}
	sq := TileSquare{X: x, Y: y, Size: size, Tiles: make([]Tile, 0, size*size)}
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			if s.inBounds(x+dx, y+dy) {
				sq.Tiles = append(sq.Tiles, s.tiles[(y+dy)*s.cfg.Width+x+dx])
			} else {
				sq.Tiles = append(sq.Tiles, Tile{})
			}
		}
	}
	return sq
}
