package masks

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// Persistence is the mask table backing store (spec §4.4, §6): one row per
// shape, keyed by (image_id, form_id), written on every structural mutation
// and reloaded wholesale via ReadAll.
//
// No example repo in the retrieved pack imports a concrete SQL driver, so
// this is built directly on database/sql's driver-agnostic interfaces
// (prepared statements, positional parameters, blob binding) rather than an
// ORM or a specific driver package — any driver registered with
// database/sql under the caller's chosen name works unmodified.
type Persistence struct {
	db *sql.DB
}

// NewPersistence wraps an already-opened *sql.DB. The caller owns the
// connection's lifetime (open/close, driver selection, pooling).
func NewPersistence(db *sql.DB) *Persistence {
	return &Persistence{db: db}
}

// EnsureSchema creates the mask table if it does not already exist.
//
// Binary blobs are packed little-endian regardless of host byte order
// (spec §4.5: "implementations must document endianness"), via
// encoding/binary.LittleEndian, so a database file is portable across
// hosts of differing native endianness.
func (p *Persistence) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS masks (
	image_id        INTEGER NOT NULL,
	form_id         INTEGER NOT NULL,
	type            INTEGER NOT NULL,
	name            TEXT NOT NULL,
	version         INTEGER NOT NULL,
	payload_blob    BLOB NOT NULL,
	payload_count   INTEGER NOT NULL,
	source_2_floats BLOB NOT NULL,
	PRIMARY KEY (image_id, form_id)
)`
	_, err := p.db.ExecContext(ctx, ddl)
	return err
}

// typeCode packs a shape's Variant and Flag into the single "type" column:
// the low byte is the Variant, the next byte is the Flag bitset.
func typeCode(shape *Shape) int64 {
	return int64(shape.Variant) | int64(shape.Flag)<<8
}

func decodeTypeCode(code int64) (Variant, Flag) {
	return Variant(code & 0xff), Flag((code >> 8) & 0xff)
}

// Write upserts shape into the mask table for imageID (spec §4.4 `write`).
func (p *Persistence) Write(ctx context.Context, imageID uint64, shape *Shape) error {
	blob, count, err := encodePayload(shape)
	if err != nil {
		return fmt.Errorf("masks: encode payload for form %d: %w", shape.ID, err)
	}
	source := encodeSource(shape.Source)

	const upsert = `
INSERT INTO masks (image_id, form_id, type, name, version, payload_blob, payload_count, source_2_floats)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (image_id, form_id) DO UPDATE SET
	type = excluded.type,
	name = excluded.name,
	version = excluded.version,
	payload_blob = excluded.payload_blob,
	payload_count = excluded.payload_count,
	source_2_floats = excluded.source_2_floats`
	_, err = p.db.ExecContext(ctx, upsert,
		int64(imageID), int64(shape.ID), typeCode(shape), shape.Name, int64(shape.Version),
		blob, count, source)
	return err
}

// WriteAll upserts every shape in shapes for imageID inside one transaction
// (spec §4.4, §8 "Round-trip persistence").
func (p *Persistence) WriteAll(ctx context.Context, imageID uint64, shapes []*Shape) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, shape := range shapes {
		blob, count, err := encodePayload(shape)
		if err != nil {
			return fmt.Errorf("masks: encode payload for form %d: %w", shape.ID, err)
		}
		const upsert = `
INSERT INTO masks (image_id, form_id, type, name, version, payload_blob, payload_count, source_2_floats)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (image_id, form_id) DO UPDATE SET
	type = excluded.type,
	name = excluded.name,
	version = excluded.version,
	payload_blob = excluded.payload_blob,
	payload_count = excluded.payload_count,
	source_2_floats = excluded.source_2_floats`
		if _, err := tx.ExecContext(ctx, upsert,
			int64(imageID), int64(shape.ID), typeCode(shape), shape.Name, int64(shape.Version),
			blob, count, encodeSource(shape.Source)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Remove deletes the persisted row for (imageID, formID) (spec §4.4
// `remove`, unconditional id-scoped delete — group unlinking is handled by
// Store.Remove before this is called).
func (p *Persistence) Remove(ctx context.Context, imageID, formID uint64) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM masks WHERE image_id = ? AND form_id = ?`,
		int64(imageID), int64(formID))
	return err
}

// ReadAll loads every shape for imageID into a fresh Store, inserting shapes
// in the order the query returns rows (no ORDER BY, so that order is
// unspecified and is not corrected); group reference order within each
// group is preserved because
// group ref blobs are packed and decoded in their original append order
// (spec §8 "Round-trip persistence ... preserves ... ordering within each
// group").
func (p *Persistence) ReadAll(ctx context.Context, imageID uint64) (*Store, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT form_id, type, name, version, payload_blob, payload_count, source_2_floats
		 FROM masks WHERE image_id = ?`, int64(imageID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	store := NewStore()
	for rows.Next() {
		var formID int64
		var code int64
		var name string
		var version int64
		var blob []byte
		var count int64
		var source []byte
		if err := rows.Scan(&formID, &code, &name, &version, &blob, &count, &source); err != nil {
			return nil, err
		}
		variant, flag := decodeTypeCode(code)
		shape := &Shape{
			ID:      uint64(formID),
			Variant: variant,
			Flag:    flag,
			Version: int(version),
			Name:    name,
			Source:  decodeSource(source),
		}
		if err := decodePayload(shape, blob, int(count)); err != nil {
			return nil, fmt.Errorf("masks: decode payload for form %d: %w", formID, err)
		}
		if !store.Insert(shape) {
			return nil, fmt.Errorf("%w: duplicate form id %d in persisted rows", ErrInvalidState, formID)
		}
	}
	return store, rows.Err()
}

// encodeSource packs a Point as two little-endian float64s (the
// source_2_floats column).
func encodeSource(p Point) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(p.X))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.Y))
	return buf
}

func decodeSource(buf []byte) Point {
	if len(buf) < 16 {
		return Point{}
	}
	return Point{
		X: math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
	}
}

// encodePayload packs a shape's variant-specific data into a flat
// little-endian record array, one record per Circle/PathPoint/GroupRef
// (spec §4.4: "for circles payload_count = 1 ... for paths it holds N
// path-point records ... for groups it holds N group-reference records").
func encodePayload(shape *Shape) ([]byte, int64, error) {
	switch shape.Variant {
	case VariantCircle:
		buf := make([]byte, 0, 32)
		buf = appendFloat64(buf, shape.Circle.Centre.X)
		buf = appendFloat64(buf, shape.Circle.Centre.Y)
		buf = appendFloat64(buf, shape.Circle.Radius)
		buf = appendFloat64(buf, shape.Circle.Border)
		return buf, 1, nil

	case VariantPath:
		const recordSize = 8 * 8 // Corner, Handle1, Handle2 (2 floats each), Border, Smooth-as-float
		buf := make([]byte, 0, len(shape.Path)*recordSize)
		for _, pt := range shape.Path {
			buf = appendFloat64(buf, pt.Corner.X)
			buf = appendFloat64(buf, pt.Corner.Y)
			buf = appendFloat64(buf, pt.Handle1.X)
			buf = appendFloat64(buf, pt.Handle1.Y)
			buf = appendFloat64(buf, pt.Handle2.X)
			buf = appendFloat64(buf, pt.Handle2.Y)
			buf = appendFloat64(buf, pt.Border)
			smooth := 0.0
			if pt.Smooth {
				smooth = 1.0
			}
			buf = appendFloat64(buf, smooth)
		}
		return buf, int64(len(shape.Path)), nil

	case VariantGroup:
		buf := make([]byte, 0, len(shape.Group)*32)
		for _, ref := range shape.Group {
			var rec [32]byte
			binary.LittleEndian.PutUint64(rec[0:8], ref.FormID)
			binary.LittleEndian.PutUint64(rec[8:16], ref.ParentID)
			binary.LittleEndian.PutUint64(rec[16:24], uint64(ref.State))
			binary.LittleEndian.PutUint64(rec[24:32], math.Float64bits(ref.Opacity))
			buf = append(buf, rec[:]...)
		}
		return buf, int64(len(shape.Group)), nil

	default:
		return nil, 0, fmt.Errorf("%w: unknown shape variant %d", ErrInvalidState, shape.Variant)
	}
}

// decodePayload is the inverse of encodePayload. A mismatch between the
// blob's length and count*recordSize is an InvalidState error (spec §7
// "hash mismatch between expected and produced data sizes ... corrupted
// persistent record").
func decodePayload(shape *Shape, blob []byte, count int) error {
	switch shape.Variant {
	case VariantCircle:
		if count != 1 || len(blob) != 32 {
			return fmt.Errorf("%w: circle payload size", ErrInvalidState)
		}
		shape.Circle = Circle{
			Centre: Point{X: readFloat64(blob, 0), Y: readFloat64(blob, 8)},
			Radius: readFloat64(blob, 16),
			Border: readFloat64(blob, 24),
		}
		return nil

	case VariantPath:
		const recordSize = 64
		if len(blob) != count*recordSize {
			return fmt.Errorf("%w: path payload size", ErrInvalidState)
		}
		shape.Path = make([]PathPoint, count)
		for i := 0; i < count; i++ {
			off := i * recordSize
			shape.Path[i] = PathPoint{
				Corner:  Point{X: readFloat64(blob, off), Y: readFloat64(blob, off+8)},
				Handle1: Point{X: readFloat64(blob, off+16), Y: readFloat64(blob, off+24)},
				Handle2: Point{X: readFloat64(blob, off+32), Y: readFloat64(blob, off+40)},
				Border:  readFloat64(blob, off+48),
				Smooth:  readFloat64(blob, off+56) != 0,
			}
		}
		return nil

	case VariantGroup:
		const recordSize = 32
		if len(blob) != count*recordSize {
			return fmt.Errorf("%w: group payload size", ErrInvalidState)
		}
		shape.Group = make([]GroupRef, count)
		for i := 0; i < count; i++ {
			off := i * recordSize
			shape.Group[i] = GroupRef{
				FormID:   binary.LittleEndian.Uint64(blob[off : off+8]),
				ParentID: binary.LittleEndian.Uint64(blob[off+8 : off+16]),
				State:    State(binary.LittleEndian.Uint64(blob[off+16 : off+24])),
				Opacity:  readFloat64(blob, off+24),
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown shape variant %d", ErrInvalidState, shape.Variant)
	}
}

func appendFloat64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

func readFloat64(buf []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))
}
