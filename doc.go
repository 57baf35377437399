// Package pixelpipe implements the image development pipeline core of a
// non-destructive raw photo editor: a recursive, demand-driven executor
// that walks an ordered chain of editing modules backward from a
// requested region of interest, materialising intermediate pixel buffers
// with aggressive caching and an optional accelerator offload with
// transparent CPU fallback.
//
// The mask composition subsystem (package masks) is a separate, persistent
// catalogue of vector shapes and groups that modules consult to build
// blending masks; pixelpipe only depends on the Mask buffer type it
// produces.
package pixelpipe
