package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// MaxStringBytes is the longest string whose length fits a two-byte varint.
const MaxStringBytes = 1<<14 - 1

// Encode serializes m into a single frame.
func Encode(m Message) ([]byte, error) {
	w := frameWriter{buf: make([]byte, 0, 32)}
	w.u8(byte(m.Kind()))
	switch v := m.(type) {
	case Hello:
		w.str(v.AgentName)
		w.viewport(v.Viewport)
	case Welcome:
		w.str(v.AgentID)
		w.i64(v.Tick)
	case LandmarkUpdate:
		w.i32(v.Pos[0])
		w.i32(v.Pos[1])
		w.i32(v.Pos[2])
		w.boolean(v.IsAdd)
	case SmeltNearby:
		w.str(v.Param)
	case AgentPose:
		w.f64(v.X)
		w.f64(v.Y)
		w.f64(v.Z)
		w.f32(v.Yaw)
		w.f32(v.Pitch)
	case ViewportUpdate:
		w.viewport(v.Viewport)
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", m)
	}
	if w.err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), w.err)
	}
	return w.buf, nil
}

// Decode parses one frame. Any decoding failure wraps ErrMalformed.
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	kind := Kind(frame[0])
	r := frameReader{b: frame[1:]}

	var m Message
	switch kind {
	case KindHello:
		m = Hello{AgentName: r.str(), Viewport: r.viewport()}
	case KindWelcome:
		m = Welcome{AgentID: r.str(), Tick: r.i64()}
	case KindLandmarkUpdate:
		// Field order is fixed: x, y, z, isAdd.
		x, y, z := r.i32(), r.i32(), r.i32()
		m = LandmarkUpdate{Pos: [3]int32{x, y, z}, IsAdd: r.boolean()}
	case KindSmeltNearby:
		m = SmeltNearby{Param: r.str()}
	case KindAgentPose:
		p := AgentPose{X: r.f64(), Y: r.f64(), Z: r.f64(), Yaw: r.f32(), Pitch: r.f32()}
		if r.err == nil && !finite(p.X, p.Y, p.Z, float64(p.Yaw), float64(p.Pitch)) {
			r.fail("non-finite pose")
		}
		m = p
	case KindViewportUpdate:
		m = ViewportUpdate{Viewport: r.viewport()}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, frame[0])
	}
	if r.err == nil && len(r.b) != 0 {
		r.fail(fmt.Sprintf("%d trailing bytes", len(r.b)))
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformed, kind, r.err)
	}
	return m, nil
}

type frameWriter struct {
	buf []byte
	err error
}

func (w *frameWriter) u8(b byte) { w.buf = append(w.buf, b) }
func (w *frameWriter) i32(v int32) { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v)) }
func (w *frameWriter) i64(v int64) { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }
func (w *frameWriter) f32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}
func (w *frameWriter) f64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *frameWriter) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *frameWriter) str(s string) {
	if w.err != nil {
		return
	}
	if len(s) > MaxStringBytes {
		w.err = ErrStringTooLong
		return
	}
	if !utf8.ValidString(s) {
		w.err = fmt.Errorf("invalid utf-8 string")
		return
	}
	w.buf = binary.AppendUvarint(w.buf, uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *frameWriter) viewport(v Viewport) {
	w.i32(v.Width)
	w.i32(v.Height)
	w.f32(v.FOV)
}

// frameReader keeps the first error and returns zero values after it.
type frameReader struct {
	b   []byte
	err error
}

type readError string

func (e readError) Error() string { return string(e) }

func (r *frameReader) fail(msg string) {
	if r.err == nil {
		r.err = readError(msg)
	}
}

func (r *frameReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.fail(fmt.Sprintf("truncated: need %d bytes, have %d", n, len(r.b)))
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *frameReader) i32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *frameReader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *frameReader) f32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func (r *frameReader) f64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func (r *frameReader) boolean() bool {
	b := r.take(1)
	if b == nil {
		return false
	}
	return b[0] != 0
}

func (r *frameReader) str() string {
	if r.err != nil {
		return ""
	}
	n, k := binary.Uvarint(r.b)
	if k <= 0 || k > 2 {
		r.fail("bad string length prefix")
		return ""
	}
	r.b = r.b[k:]
	raw := r.take(int(n))
	if r.err != nil {
		return ""
	}
	if !utf8.Valid(raw) {
		r.fail("invalid utf-8 string")
		return ""
	}
	return string(raw)
}

func (r *frameReader) viewport() Viewport {
	v := Viewport{Width: r.i32(), Height: r.i32(), FOV: r.f32()}
	if r.err == nil && !finite(float64(v.FOV)) {
		r.fail("non-finite fov")
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
