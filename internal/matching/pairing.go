package matching

// PairingTable is the symmetric map of who is talking to whom.
// pairs[a] == b holds exactly when pairs[b] == a.
type PairingTable struct {
	pairs map[string]string
}

// NewPairingTable creates an empty table
func NewPairingTable() *PairingTable {
	return &PairingTable{
		pairs: make(map[string]string),
	}
}

// Pair links a and b in both directions. Any previous partner of either side
// loses its entry, so no half-pairs survive.
func (p *PairingTable) Pair(a, b string) {
	if a == b {
		return
	}
	if old, ok := p.pairs[a]; ok && old != b {
		delete(p.pairs, old)
	}
	if old, ok := p.pairs[b]; ok && old != a {
		delete(p.pairs, old)
	}
	p.pairs[a] = b
	p.pairs[b] = a
}

// Unpair removes a's entry and its partner's reciprocal entry.
// Returns the former partner.
func (p *PairingTable) Unpair(a string) (string, bool) {
	partner, ok := p.pairs[a]
	if !ok {
		return "", false
	}
	delete(p.pairs, a)
	if p.pairs[partner] == a {
		delete(p.pairs, partner)
	}
	return partner, true
}

// PartnerOf returns the id paired with id
func (p *PairingTable) PartnerOf(id string) (string, bool) {
	partner, ok := p.pairs[id]
	return partner, ok
}

// IsPaired reports whether id has a partner
func (p *PairingTable) IsPaired(id string) bool {
	_, ok := p.pairs[id]
	return ok
}

// Len returns the number of pairs (not entries)
func (p *PairingTable) Len() int {
	return len(p.pairs) / 2
}

// Copy returns a copy of every entry
func (p *PairingTable) Copy() map[string]string {
	out := make(map[string]string, len(p.pairs))
	for k, v := range p.pairs {
		out[k] = v
	}
	return out
}
