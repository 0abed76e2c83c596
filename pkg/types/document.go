package types

import "fmt"

// NumLevels is the number of rollup levels, 0 through 3.
const NumLevels = 4

// DocumentVersion is written into every persisted document.
const DocumentVersion = 1

// Document is the persisted rollup state. It is always read and written as a
// whole.
//
// Consumed[k] counts the leading entries of level k already claimed by a
// promotion into level k+1. Windows are taken from that index forward, so two
// promotions never share a source.
type Document struct {
	Version  int            `json:"version"`
	Level0   []Node         `json:"level0"`
	Level1   []Node         `json:"level1"`
	Level2   []Node         `json:"level2"`
	Level3   []Node         `json:"level3"`
	Consumed [NumLevels]int `json:"consumed"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Version: DocumentVersion,
		Level0:  []Node{},
		Level1:  []Node{},
		Level2:  []Node{},
		Level3:  []Node{},
	}
}

// ValidLevel reports whether level names one of the document's levels.
func ValidLevel(level int) bool {
	return level >= 0 && level < NumLevels
}

func (d *Document) levelPtr(level int) *[]Node {
	switch level {
	case 0:
		return &d.Level0
	case 1:
		return &d.Level1
	case 2:
		return &d.Level2
	case 3:
		return &d.Level3
	default:
		panic(fmt.Sprintf("types: level %d out of range", level))
	}
}

// Level returns the entries stored at level. The slice aliases the document.
func (d *Document) Level(level int) []Node {
	return *d.levelPtr(level)
}

// SetLevel replaces the entries stored at level.
func (d *Document) SetLevel(level int, nodes []Node) {
	*d.levelPtr(level) = nodes
}

// Append adds n to the end of level.
func (d *Document) Append(level int, n Node) {
	p := d.levelPtr(level)
	*p = append(*p, n)
}

// Pending returns how many entries of level have not yet been claimed by a
// promotion.
func (d *Document) Pending(level int) int {
	return len(d.Level(level)) - d.Consumed[level]
}

// Normalize repairs fields a decoder may leave unset and clamps cursors into
// range.
func (d *Document) Normalize() {
	if d.Version == 0 {
		d.Version = DocumentVersion
	}
	for k := 0; k < NumLevels; k++ {
		if d.Level(k) == nil {
			d.SetLevel(k, []Node{})
		}
		n := len(d.Level(k))
		if d.Consumed[k] < 0 {
			d.Consumed[k] = 0
		}
		if d.Consumed[k] > n {
			d.Consumed[k] = n
		}
	}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := &Document{Version: d.Version, Consumed: d.Consumed}
	for k := 0; k < NumLevels; k++ {
		src := d.Level(k)
		dst := make([]Node, len(src))
		for i, n := range src {
			dst[i] = n.Clone()
		}
		out.SetLevel(k, dst)
	}
	return out
}
