package main

// Registry holds the live player sessions in join order.
// It is owned by the hub goroutine and is not safe for concurrent use.
type Registry struct {
	players map[string]*Player
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

// Add registers p. It returns false if the id is already present.
func (r *Registry) Add(p *Player) bool {
	if _, ok := r.players[p.ID]; ok {
		return false
	}
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	return true
}

// Remove drops the session with the given id, if any
func (r *Registry) Remove(id string) *Player {
	p, ok := r.players[id]
	if !ok {
		return nil
	}
	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p
}

func (r *Registry) Get(id string) *Player {
	return r.players[id]
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Each calls fn for every player in join order
func (r *Registry) Each(fn func(*Player)) {
	for _, id := range r.order {
		fn(r.players[id])
	}
}

// Alive counts players that are not dead
func (r *Registry) Alive() int {
	n := 0
	for _, p := range r.players {
		if !p.Dead {
			n++
		}
	}
	return n
}
