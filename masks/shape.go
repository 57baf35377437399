// Package masks implements the mask composition subsystem (spec §1, §3,
// §4.2–§4.4): a persistent catalogue of vector shapes and hierarchical
// groups, their rasterization into alpha masks at a given pipe scale, and
// group composition by union/intersection/difference/exclusion.
package masks

// Variant is the shape's tagged-union discriminant (spec §3, §9: "tagged
// unions with exhaustive match on variant, not inheritance").
type Variant uint8

const (
	VariantCircle Variant = iota
	VariantPath
	VariantGroup
)

// Flag is combined with Variant to mark clone-kind shapes (spec §3:
// "possibly combined with the flag Clone").
type Flag uint8

const (
	FlagNone  Flag = 0
	FlagClone Flag = 1 << 0
)

// State is the per-reference combinator bitmask a Group applies to each of
// its members (spec §3, §4.3).
type State uint16

const (
	StateShow State = 1 << iota
	StateUse
	StateUnion
	StateIntersection
	StateDifference
	StateExclusion
)

// Point is a normalised image-relative 2-D coordinate in [0,1]² (spec §4.2
// "Coordinate convention").
type Point struct {
	X, Y float64
}

// Circle is the payload of a VariantCircle shape (spec §3).
type Circle struct {
	Centre Point
	Radius float64
	Border float64
}

// PathPoint is one control point of a VariantPath shape (spec §3). Path
// points are stored as owned value copies, never as slices into a shared
// backing array — spec §9's first Open Question flags the legacy
// contiguous-allocation aliasing as a defect; this reimplementation avoids
// it structurally by giving every shape its own []PathPoint.
type PathPoint struct {
	Corner  Point
	Handle1 Point // inbound tangent handle
	Handle2 Point // outbound tangent handle
	Border  float64
	Smooth  bool // false = corner node
}

// GroupRef is one member of a VariantGroup shape (spec §3, §4.3).
type GroupRef struct {
	FormID   uint64
	ParentID uint64
	State    State
	Opacity  float64 // clamped to [0,1], spec §3 invariant (iv)
}

// Shape is the tagged union of every shape kind (spec §3). Exactly one of
// Circle, Path, or Group is meaningful, selected by Variant — callers must
// switch on Variant rather than test fields for nilness/zero-ness.
type Shape struct {
	ID      uint64
	Variant Variant
	Flag    Flag
	Version int
	Name    string
	Source  Point // clone source point, meaningful only with FlagClone

	Circle Circle
	Path   []PathPoint
	Group  []GroupRef
}

// IsClone reports whether the shape carries the Clone flag (spec §3).
func (s *Shape) IsClone() bool { return s.Flag&FlagClone != 0 }

// clampOpacity enforces the [0,1] invariant on a GroupRef's opacity
// (spec §3 invariant (iv), §8 "Opacity bounds").
func clampOpacity(o float64) float64 {
	if o < 0 {
		return 0
	}
	if o > 1 {
		return 1
	}
	return o
}

// ChangeOpacity adjusts ref's opacity by delta. A change whose result would
// fall outside [0,1] is a no-op: the stored opacity stays as it was.
func (r *GroupRef) ChangeOpacity(delta float64) {
	next := r.Opacity + delta
	if next < 0 || next > 1 {
		return
	}
	r.Opacity = next
}
