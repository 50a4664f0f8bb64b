package wasm

import "fmt"

// SigIndex is a dense key identifying a distinct function signature
// within a module's SignatureTable.
type SigIndex uint32

func (i SigIndex) String() string {
	return fmt.Sprintf("sig%d", uint32(i))
}

// SignatureTable deduplicates function types structurally. Two types with
// identical parameter and result sequences share one SigIndex.
//
// The table is built single-threaded during compilation and is read-only
// once handed to an artifact.
type SignatureTable struct {
	byKey  map[string]SigIndex
	sigs   []FuncType
	byType []SigIndex // module type index -> SigIndex
}

// NewSignatureTable builds the table for every type in m.
func NewSignatureTable(m *Module) *SignatureTable {
	t := &SignatureTable{byKey: make(map[string]SigIndex)}
	if m == nil {
		return t
	}
	t.byType = make([]SigIndex, len(m.Types))
	for i, ft := range m.Types {
		t.byType[i] = t.Declare(ft)
	}
	return t
}

// Declare returns the index of ft, adding it if no structurally equal
// signature is present.
func (t *SignatureTable) Declare(ft FuncType) SigIndex {
	key := ft.Key()
	if idx, ok := t.byKey[key]; ok {
		return idx
	}
	idx := SigIndex(len(t.sigs))
	t.sigs = append(t.sigs, ft.Clone())
	t.byKey[key] = idx
	return idx
}

// Lookup returns the index of a structurally equal signature.
func (t *SignatureTable) Lookup(ft FuncType) (SigIndex, bool) {
	idx, ok := t.byKey[ft.Key()]
	return idx, ok
}

// Signature returns the function type stored at idx.
func (t *SignatureTable) Signature(idx SigIndex) (FuncType, bool) {
	if int(idx) >= len(t.sigs) {
		return FuncType{}, false
	}
	return t.sigs[idx], true
}

// ForType maps a module type index to its SigIndex.
func (t *SignatureTable) ForType(typeIdx uint32) (SigIndex, bool) {
	if int(typeIdx) >= len(t.byType) {
		return 0, false
	}
	return t.byType[typeIdx], true
}

// Len returns the number of distinct signatures.
func (t *SignatureTable) Len() int {
	return len(t.sigs)
}

// Signatures returns a copy of all signatures ordered by SigIndex.
func (t *SignatureTable) Signatures() []FuncType {
	out := make([]FuncType, len(t.sigs))
	for i, s := range t.sigs {
		out[i] = s.Clone()
	}
	return out
}

// Clone returns an independent copy of the table.
func (t *SignatureTable) Clone() *SignatureTable {
	c := &SignatureTable{
		byKey:  make(map[string]SigIndex, len(t.byKey)),
		sigs:   t.Signatures(),
		byType: append([]SigIndex(nil), t.byType...),
	}
	for k, v := range t.byKey {
		c.byKey[k] = v
	}
	return c
}
