// Package crdt implements a per-file conflict-free replicated text
// buffer. No CRDT library ships in this module's dependency graph, so
// the algorithm here is hand-rolled: a left-origin RGA (Roh et al.),
// the same family the editor's original collaboration layer built on
// (a Yjs-style operation-based RGA/YATA), adapted to plain Go values
// instead of a binary wire format. Updates and diffs are JSON-encoded
// op lists and state vectors are JSON-encoded client-to-clock maps —
// opaque byte sequences to every caller, which is all the contract
// requires.
package crdt

import (
	"encoding/json"
	"sort"
	"strings"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// ElementID uniquely identifies one inserted character: the client
// that created it, and that client's local logical clock at creation.
type ElementID struct {
	Client uint64 `json:"client"`
	Clock  uint64 `json:"clock"`
}

var zeroID = ElementID{}

func idLess(a, b ElementID) bool {
	if a.Clock != b.Clock {
		return a.Clock < b.Clock
	}
	return a.Client < b.Client
}

// OpKind distinguishes an insert op from a delete op in the log.
type OpKind int

const (
	OpInsert OpKind = iota
	OpDelete
)

// Op is one causal unit of the document's history. Inserts carry the
// new character and its left origin; deletes carry only the target ID
// (tombstoning, never physical removal, is what makes concurrent
// insert/delete pairs converge).
type Op struct {
	Kind          OpKind    `json:"kind"`
	ID            ElementID `json:"id"`
	Char          rune      `json:"char,omitempty"`
	OriginLeft    ElementID `json:"origin_left"`
	HasOriginLeft bool      `json:"has_origin_left"`
	Target        ElementID `json:"target,omitempty"`
}

type element struct {
	id         ElementID
	char       rune
	originLeft ElementID
	hasOrigin  bool
	deleted    bool
}

// Document is one file's replicated text buffer.
type Document struct {
	fileID   string
	clientID uint64
	clock    uint64

	elements []element
	byID     map[ElementID]int // id -> index into elements

	log []Op
}

// NewDocument creates an empty replica for fileID under the given
// client identity. clientID must be unique per participating peer.
func NewDocument(fileID string, clientID uint64) *Document {
	return &Document{
		fileID:   fileID,
		clientID: clientID,
		byID:     make(map[ElementID]int),
	}
}

// NewDocumentWithText seeds a fresh replica with initial content,
// attributing every character to this client as a local insert.
func NewDocumentWithText(fileID string, clientID uint64, text string) *Document {
	d := NewDocument(fileID, clientID)
	d.Insert(0, text)
	return d
}

// FileID returns the identifier this replica was created for.
func (d *Document) FileID() string { return d.fileID }

// GetText renders the current visible (non-tombstoned) content.
func (d *Document) GetText() string {
	var b strings.Builder
	for _, e := range d.elements {
		if !e.deleted {
			b.WriteRune(e.char)
		}
	}
	return b.String()
}

// visibleIndexToElementIndex maps a rune offset in the visible text to
// an index in the full element slice (including tombstones).
func (d *Document) visibleIndexToElementIndex(offset int) int {
	seen := 0
	for i, e := range d.elements {
		if !e.deleted {
			if seen == offset {
				return i
			}
			seen++
		}
	}
	return len(d.elements)
}

// Insert inserts text at the given visible-text rune offset, producing
// one Op (and one element) per rune, each chained to the previous as
// its left origin.
func (d *Document) Insert(offset int, text string) {
	if text == "" {
		return
	}
	elemIdx := d.visibleIndexToElementIndex(offset)
	var originLeft ElementID
	hasOrigin := false
	if elemIdx > 0 {
		originLeft = d.elements[elemIdx-1].id
		hasOrigin = true
	}

	for _, r := range text {
		d.clock++
		id := ElementID{Client: d.clientID, Clock: d.clock}
		op := Op{Kind: OpInsert, ID: id, Char: r, OriginLeft: originLeft, HasOriginLeft: hasOrigin}
		d.applyInsert(op)
		d.log = append(d.log, op)
		originLeft = id
		hasOrigin = true
	}
}

// Delete tombstones length visible runes starting at offset.
func (d *Document) Delete(offset, length int) {
	for i := 0; i < length; i++ {
		elemIdx := d.visibleIndexToElementIndex(offset)
		if elemIdx >= len(d.elements) {
			return
		}
		target := d.elements[elemIdx].id
		d.clock++
		op := Op{Kind: OpDelete, ID: ElementID{Client: d.clientID, Clock: d.clock}, Target: target}
		d.applyDelete(op)
		d.log = append(d.log, op)
	}
}

// originPos returns the current element-slice index of an origin
// reference, or -1 for "no origin" (the virtual start of the
// document) or for an origin this replica has not integrated yet.
func (d *Document) originPos(id ElementID, hasOrigin bool) int {
	if !hasOrigin {
		return -1
	}
	if idx, ok := d.byID[id]; ok {
		return idx
	}
	return -1
}

// applyInsert integrates a (possibly remote) insert op into the
// element list using left-origin RGA conflict resolution.
//
// A new element starts scanning immediately after its origin. Scanning
// must not stop at the first sibling with a different origin: any
// element whose own origin sits at or after op's origin belongs to the
// same conflict zone (it is a transitive descendant of op's origin,
// even if it arrived via a different concurrent chain), and the scan
// has to pass over it too, only stopping once an element whose origin
// lies strictly before op's origin is reached. Direct siblings — same
// origin position — break the tie by ID order. This is what makes two
// concurrent multi-character inserts at the same position (e.g. both
// replicas inserting at offset 0) converge to the same text regardless
// of delivery order; comparing origins by exact ElementID instead of
// by position let unrelated interleaved chains stop the scan early and
// diverge.
func (d *Document) applyInsert(op Op) {
	if _, exists := d.byID[op.ID]; exists {
		return
	}
	left := d.originPos(op.OriginLeft, op.HasOriginLeft)
	pos := left + 1
	for pos < len(d.elements) {
		o := d.elements[pos]
		oLeft := d.originPos(o.originLeft, o.hasOrigin)
		if oLeft < left {
			break
		}
		if oLeft == left {
			if idLess(op.ID, o.id) {
				pos++
				continue
			}
			break
		}
		// oLeft > left: o descends from an origin further right than
		// op's own, so it stays ahead of op no matter the ID order.
		pos++
	}
	newElem := element{id: op.ID, char: op.Char, originLeft: op.OriginLeft, hasOrigin: op.HasOriginLeft}
	d.elements = append(d.elements, element{})
	copy(d.elements[pos+1:], d.elements[pos:])
	d.elements[pos] = newElem
	d.reindexFrom(pos)
}

func (d *Document) applyDelete(op Op) {
	idx, ok := d.byID[op.Target]
	if !ok {
		return
	}
	d.elements[idx].deleted = true
}

func (d *Document) reindexFrom(from int) {
	for i := from; i < len(d.elements); i++ {
		d.byID[d.elements[i].id] = i
	}
}

// maxClocks returns, per client, the highest clock seen in the log —
// the state-vector representation.
func (d *Document) maxClocks() map[uint64]uint64 {
	sv := make(map[uint64]uint64)
	record := func(id ElementID) {
		if id.Clock > sv[id.Client] {
			sv[id.Client] = id.Clock
		}
	}
	for _, op := range d.log {
		record(op.ID)
	}
	return sv
}

// EncodeStateVector returns the opaque byte encoding of this replica's
// per-client progress, for a peer to diff against.
func (d *Document) EncodeStateVector() ([]byte, error) {
	return json.Marshal(d.maxClocks())
}

// EncodeState returns the entire op log, for a peer with no prior
// state (the "fresh replica" case).
func (d *Document) EncodeState() ([]byte, error) {
	return json.Marshal(d.log)
}

// EncodeDiff returns every op this replica holds that remoteStateVector
// (as returned by EncodeStateVector) does not yet reflect.
func (d *Document) EncodeDiff(remoteStateVector []byte) ([]byte, error) {
	var remote map[uint64]uint64
	if len(remoteStateVector) > 0 {
		if err := json.Unmarshal(remoteStateVector, &remote); err != nil {
			return nil, coreerrors.ProtocolError("malformed state vector: %v", err)
		}
	}
	var diff []Op
	for _, op := range d.log {
		if op.ID.Clock > remote[op.ID.Client] {
			diff = append(diff, op)
		}
	}
	return json.Marshal(diff)
}

// ApplyUpdate applies a byte-encoded op list (from EncodeState or
// EncodeDiff) to this replica. Applying the same op twice, or applying
// ops already reflected locally, is a no-op — integration is
// idempotent by ElementID.
func (d *Document) ApplyUpdate(update []byte) error {
	var ops []Op
	if err := json.Unmarshal(update, &ops); err != nil {
		return coreerrors.ProtocolError("malformed CRDT update: %v", err)
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Kind == OpInsert && ops[j].Kind == OpDelete })
	for _, op := range ops {
		switch op.Kind {
		case OpInsert:
			d.applyInsert(op)
			d.appendLogIfNew(op)
		case OpDelete:
			d.applyDelete(op)
			d.appendLogIfNew(op)
		}
	}
	return nil
}

func (d *Document) appendLogIfNew(op Op) {
	for _, existing := range d.log {
		if existing.Kind == op.Kind && existing.ID == op.ID && existing.Target == op.Target {
			return
		}
	}
	d.log = append(d.log, op)
	if op.ID.Clock > d.clock && op.ID.Client == d.clientID {
		d.clock = op.ID.Clock
	}
}
