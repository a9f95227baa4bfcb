package game

// DeltaTracker tracks player state changes for delta compression.
type DeltaTracker struct {
	lastStates map[int]playerSnapshot
}

type playerSnapshot struct {
	x, y   float32
	vx, vy float32
}

// NewDeltaTracker creates a new delta tracker.
func NewDeltaTracker() *DeltaTracker {
	return &DeltaTracker{
		lastStates: make(map[int]playerSnapshot),
	}
}

// ComputeDelta returns only players changed since the last call, and the
// ids of players no longer present. If fullSync is true, every player is
// returned.
func (d *DeltaTracker) ComputeDelta(players []PlayerState, fullSync bool) (changed []PlayerState, removed []int) {
	current := make(map[int]bool, len(players))
	for _, p := range players {
		current[p.ID] = true
	}

	for id := range d.lastStates {
		if !current[id] {
			removed = append(removed, id)
			delete(d.lastStates, id)
		}
	}

	for _, p := range players {
		snapshot := playerSnapshot{
			x:  p.Position.X,
			y:  p.Position.Y,
			vx: p.Velocity.X,
			vy: p.Velocity.Y,
		}

		last, exists := d.lastStates[p.ID]
		if fullSync || !exists || last.changed(snapshot) {
			changed = append(changed, p)
			d.lastStates[p.ID] = snapshot
		}
	}

	return changed, removed
}

// changed ignores movements below epsilon.
func (old playerSnapshot) changed(cur playerSnapshot) bool {
	const epsilon = 0.1

	if abs(cur.x-old.x) > epsilon || abs(cur.y-old.y) > epsilon {
		return true
	}
	return abs(cur.vx-old.vx) > epsilon || abs(cur.vy-old.vy) > epsilon
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// Clear resets all tracked state.
func (d *DeltaTracker) Clear() {
	d.lastStates = make(map[int]playerSnapshot)
}
