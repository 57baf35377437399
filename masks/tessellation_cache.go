package masks

import (
	"fmt"

	"github.com/rawpipe/pixelpipe/cache"
)

// tessellationGeometry is one rasterizer's flattened outline/border
// polyline pair, the expensive part of points_border (spec §4.2) that this
// cache exists to memoize.
type tessellationGeometry struct {
	points []float64
	border []float64
}

// tessellationCache memoizes path/circle tessellation keyed by a shape's
// (form_id, version) plus every pipe-geometry input that changes its pixel
// coordinates, so re-rasterizing an unchanged shape at the same pipe scale
// is a cache hit instead of a full Catmull-Rom/Bezier reflatten.
//
// Grounded on cache.ShardedCache, the teacher's generic sharded LRU
// primitive, keyed here by a composite string via cache.StringHasher.
var tessellationCache = cache.NewSharded[string, tessellationGeometry](0, cache.StringHasher)

func tessellationKey(prefix string, formID uint64, version int, iwidth, iheight, iscale, localScale float64) string {
	return fmt.Sprintf("%s:%d:%d:%.6f:%.6f:%.6f:%.6f", prefix, formID, version, iwidth, iheight, iscale, localScale)
}
