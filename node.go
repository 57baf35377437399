package pixelpipe

import "golang.org/x/exp/slices"

// SyncReason selects how Synchronize rebuilds a NodeList after a document
// mutation (spec §4.5).
type SyncReason int

const (
	// TopChanged re-commits parameters for the single most recent history
	// entry; touches exactly one node.
	TopChanged SyncReason = iota
	// Synch resets every node to defaults, then replays the entire history
	// prefix up to historyEnd.
	Synch
	// Remove tears down every node (calling Module.CleanupPipe), rebuilds
	// the list from scratch, then performs a Synch.
	Remove
)

// HistoryEntry is one committed parameter change against a module, replayed
// by Synchronize(Synch, ...) and Synchronize(Remove, ...) (spec §4.5).
type HistoryEntry struct {
	Op          string
	Params      []byte
	BlendParams []byte
	Enabled     bool
}

// Node is one module's per-pipe instantiation in execution order (spec §3
// "Pipeline node", §4.5 "Pipeline Node List").
type Node struct {
	Module   Module
	Piece    *Piece
	Position int
}

// NodeList is the ordered sequence of Nodes for one pipe (spec §4.5):
// construction appends one node per module in the document's module
// sequence, whether enabled or not, so topology and hashing stay stable
// across disable/enable toggles.
//
// Grounded on gpucore/pipeline.go's config/mutex-guarded rebuild, adapted
// from "one GPU pipeline object" to "an ordered list of modules".
type NodeList struct {
	nodes   []*Node
	history []HistoryEntry
}

// NewNodeList builds a fresh NodeList with one Node per module, in order,
// all initially disabled pending the first Synch.
func NewNodeList(modules []Module) *NodeList {
	nl := &NodeList{nodes: make([]*Node, len(modules))}
	for i, m := range modules {
		nl.nodes[i] = &Node{
			Module:   m,
			Piece:    &Piece{Module: m},
			Position: i,
		}
	}
	return nl
}

// Nodes returns the node list in execution order (input-side first).
func (nl *NodeList) Nodes() []*Node { return nl.nodes }

// ByOp returns the node whose module's Op matches op, or nil.
func (nl *NodeList) ByOp(op string) *Node {
	idx := slices.IndexFunc(nl.nodes, func(n *Node) bool { return n.Module.Op() == op })
	if idx < 0 {
		return nil
	}
	return nl.nodes[idx]
}

// CommitParams updates a node's committed parameters and hash (spec §4.5
// `commit_params`), notifies the module, and appends the corresponding
// history entry.
func (nl *NodeList) CommitParams(node *Node, params, blendParams []byte, enabled bool) {
	node.Piece.Params = params
	node.Piece.BlendParams = blendParams
	node.Piece.Enabled = enabled
	node.Piece.Hash = foldParams(node.Piece.Hash, params, blendParams)
	node.Module.CommitParams(node.Piece, params, blendParams)
	nl.history = append(nl.history, HistoryEntry{
		Op: node.Module.Op(), Params: params, BlendParams: blendParams, Enabled: enabled,
	})
}

// Synchronize re-synchronises the node list per reason (spec §4.5):
//
//   - TopChanged re-commits only the most recent history entry, touching a
//     single node.
//   - Synch resets every node to defaults then replays the full history
//     prefix up to historyEnd.
//   - Remove tears down every node via Module.CleanupPipe, rebuilds the
//     node list (the caller supplies the new module sequence), then performs
//     a Synch.
func (nl *NodeList) Synchronize(reason SyncReason, pipe *Pipe, historyEnd int, modules []Module) {
	switch reason {
	case TopChanged:
		if len(nl.history) == 0 {
			return
		}
		last := nl.history[len(nl.history)-1]
		if node := nl.ByOp(last.Op); node != nil {
			nl.CommitParams(node, last.Params, last.BlendParams, last.Enabled)
		}

	case Synch:
		for _, n := range nl.nodes {
			n.Piece = &Piece{Module: n.Module}
		}
		end := historyEnd
		if end > len(nl.history) {
			end = len(nl.history)
		}
		for _, entry := range nl.history[:end] {
			if node := nl.ByOp(entry.Op); node != nil {
				node.Piece.Params = entry.Params
				node.Piece.BlendParams = entry.BlendParams
				node.Piece.Enabled = entry.Enabled
				node.Piece.Hash = foldParams(0, entry.Params, entry.BlendParams)
				node.Module.CommitParams(node.Piece, entry.Params, entry.BlendParams)
			}
		}

	case Remove:
		for _, n := range nl.nodes {
			n.Module.CleanupPipe(pipe, n.Piece)
		}
		history := nl.history
		*nl = *NewNodeList(modules)
		nl.history = history
		nl.Synchronize(Synch, pipe, historyEnd, modules)
	}
}
