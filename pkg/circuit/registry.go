package circuit

import "strings"

// NodeRegistry maps terminal positions to node indices. Ground is always 0
// and never appears in the solvable range 1..NodeCount.
type NodeRegistry struct {
	index map[string]int
	names []string // names[i-1] is node i
}

func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{index: make(map[string]int)}
}

func IsGround(position string) bool {
	return position == "0" || strings.EqualFold(position, "gnd")
}

// RegisterTerminal returns the index for position, allocating the next one
// the first time the position is seen.
func (r *NodeRegistry) RegisterTerminal(position string) int {
	if IsGround(position) {
		return 0
	}
	if idx, ok := r.index[position]; ok {
		return idx
	}
	r.names = append(r.names, position)
	idx := len(r.names)
	r.index[position] = idx
	return idx
}

func (r *NodeRegistry) Lookup(position string) (int, bool) {
	if IsGround(position) {
		return 0, true
	}
	idx, ok := r.index[position]
	return idx, ok
}

func (r *NodeRegistry) NodeCount() int {
	return len(r.names)
}

func (r *NodeRegistry) Name(idx int) string {
	if idx == 0 {
		return "0"
	}
	if idx < 0 || idx > len(r.names) {
		return ""
	}
	return r.names[idx-1]
}

// Names returns node names ordered by index, ground excluded.
func (r *NodeRegistry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *NodeRegistry) Reset() {
	clear(r.index)
	r.names = r.names[:0]
}
