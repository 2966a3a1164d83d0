package core

type Registry struct {
	venues map[VenueID]Quoter
	order  []VenueID
}

func NewRegistry() *Registry { return &Registry{venues: make(map[VenueID]Quoter, 16)} }

func (r *Registry) Register(q Quoter) {
	if _, ok := r.venues[q.ID()]; !ok {
		r.order = append(r.order, q.ID())
	}
	r.venues[q.ID()] = q
}

func (r *Registry) Get(id VenueID) Quoter { return r.venues[id] }

// Enabled returns the registered venues among ids, in ids order.
func (r *Registry) Enabled(ids []VenueID) []Quoter {
	out := make([]Quoter, 0, len(ids))
	for _, id := range ids {
		if q := r.Get(id); q != nil {
			out = append(out, q)
		}
	}
	return out
}

func (r *Registry) All() []Quoter { return r.Enabled(r.order) }
