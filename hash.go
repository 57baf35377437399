package pixelpipe

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// cacheKey computes the 64-bit cache key for one node's output at a given
// ROI (spec §4.1 "hash construction"): it folds the image identity, the
// requested ROI, the pipe's identity, the node's position in the chain, and
// the upstream hash already folded into upstreamHash by CommitParams/the
// recursive walk, so two pipes with identical upstream state and ROI
// produce identical hashes (spec §8 "Cache determinism").
//
// Grounded on cache.StringHasher/IntHasher's FNV-1a byte-folding idiom,
// generalized to fold a heterogeneous tuple instead of a single key.
func cacheKey(imageID uint64, roi ROI, pipeIdentity uint64, nodePosition int, upstreamHash uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	writeUint64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	writeInt := func(v int) { writeUint64(uint64(v)) }
	writeFloat := func(v float64) { writeUint64(math.Float64bits(v)) }

	writeUint64(imageID)
	writeInt(roi.X)
	writeInt(roi.Y)
	writeInt(roi.Width)
	writeInt(roi.Height)
	writeFloat(roi.Scale)
	writeUint64(pipeIdentity)
	writeInt(nodePosition)
	writeUint64(upstreamHash)

	return h.Sum64()
}

// foldParams folds a piece's committed parameter bytes into its existing
// hash (spec §4.5 `commit_params`: "updates the piece's hash by folding the
// new parameters; this is the source that feeds the cache key").
func foldParams(previous uint64, params, blendParams []byte) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], previous)
	_, _ = h.Write(buf[:])
	_, _ = h.Write(params)
	_, _ = h.Write(blendParams)
	return h.Sum64()
}

// foldUpstream sequentially folds every piece hash in pieceHashes (ordered
// input-side first) into a single combined hash, so the result changes
// whenever any one of them does (spec §4.1 "must incorporate every
// committed parameter of every earlier module"). Order-sensitive, unlike a
// plain XOR, so two chains sharing the same per-node hashes in a different
// order don't collide.
func foldUpstream(pieceHashes []uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range pieceHashes {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
