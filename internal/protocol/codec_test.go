package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncode_LandmarkUpdateLayout(t *testing.T) {
	b, err := Encode(LandmarkUpdate{Pos: [3]int32{10, 5, -3}, IsAdd: true})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{
		byte(KindLandmarkUpdate),
		0, 0, 0, 10,
		0, 0, 0, 5,
		0xff, 0xff, 0xff, 0xfd,
		1,
	}
	if !bytes.Equal(b, want) {
		t.Fatalf("layout mismatch:\n got=% x\nwant=% x", b, want)
	}
}

func TestEncode_SmeltNearbyLayout(t *testing.T) {
	b, err := Encode(SmeltNearby{Param: "iron_ingot"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := append([]byte{byte(KindSmeltNearby), 10}, "iron_ingot"...)
	if !bytes.Equal(b, want) {
		t.Fatalf("layout mismatch:\n got=% x\nwant=% x", b, want)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	msgs := []Message{
		Hello{AgentName: "bot-1", Viewport: Viewport{Width: 1920, Height: 1080, FOV: 70}},
		Welcome{AgentID: "A1", Tick: 42},
		LandmarkUpdate{Pos: [3]int32{-1, 64, 2147483647}},
		SmeltNearby{Param: strings.Repeat("é", 300)},
		AgentPose{X: 0.5, Y: 64, Z: -10.25, Yaw: 180, Pitch: -30},
		ViewportUpdate{Viewport: Viewport{Width: 9, Height: 16, FOV: 110}},
	}
	for _, m := range msgs {
		b, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode %T: %v", m, err)
		}
		got, err := Decode(b)
		if err != nil {
			t.Fatalf("Decode %T: %v", m, err)
		}
		if diff := cmp.Diff(m, got); diff != "" {
			t.Fatalf("round trip %T (-want +got):\n%s", m, diff)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	valid, _ := Encode(SmeltNearby{Param: "glass"})
	update, _ := Encode(LandmarkUpdate{Pos: [3]int32{1, 2, 3}, IsAdd: true})
	pose, _ := Encode(AgentPose{X: 1})
	nanPose := append([]byte(nil), pose...)
	copy(nanPose[1:9], []byte{0x7f, 0xf8, 0, 0, 0, 0, 0, 1})

	cases := map[string][]byte{
		"empty":              nil,
		"unknown kind":       {0x7f},
		"truncated string":   valid[:len(valid)-2],
		"missing length":     {byte(KindSmeltNearby)},
		"three byte varint":  {byte(KindSmeltNearby), 0x80, 0x80, 0x01},
		"invalid utf8":       {byte(KindSmeltNearby), 2, 0xc3, 0x28},
		"truncated ints":     update[:6],
		"missing isAdd":      update[:len(update)-1],
		"trailing bytes":     append(append([]byte(nil), update...), 0),
		"non-finite pose":    nanPose,
		"truncated viewport": {byte(KindViewportUpdate), 0, 0, 1},
	}
	for name, frame := range cases {
		if _, err := Decode(frame); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestDecode_NonZeroBoolIsTrue(t *testing.T) {
	m, err := Decode([]byte{byte(KindLandmarkUpdate), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 7})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !m.(LandmarkUpdate).IsAdd {
		t.Fatalf("expected non-zero byte to decode as true")
	}
}

func TestEncode_StringLimits(t *testing.T) {
	if _, err := Encode(SmeltNearby{Param: strings.Repeat("a", MaxStringBytes)}); err != nil {
		t.Fatalf("max length rejected: %v", err)
	}
	if _, err := Encode(SmeltNearby{Param: strings.Repeat("a", MaxStringBytes+1)}); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
	if _, err := Encode(SmeltNearby{Param: "\xff"}); err == nil {
		t.Fatalf("expected invalid utf-8 rejected")
	}
}
