package scale

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// testFrame builds a minimal valid 20-byte frame.
func testFrame(weight uint16, fat, water, muscle, bone byte) []byte {
	buf := make([]byte, 20)
	buf[0] = FrameMarker
	buf[2] = byte(weight)
	buf[3] = byte(weight >> 8)
	buf[4] = fat
	buf[5] = water
	buf[6] = muscle
	buf[7] = bone
	return buf
}

func TestEncodeCommand(t *testing.T) {
	if got := EncodeCommand(CmdInit); !bytes.Equal(got, []byte{0xF6, 0x00}) {
		t.Errorf("EncodeCommand(CmdInit) = %x, want f600", got)
	}
	if got := EncodeCommand(CmdSync); !bytes.Equal(got, []byte{0xF9, 0x00}) {
		t.Errorf("EncodeCommand(CmdSync) = %x, want f900", got)
	}
}

func TestDecodeNotificationTooShort(t *testing.T) {
	for _, n := range []int{0, 1, 19} {
		buf := make([]byte, n)
		if n > 0 {
			buf[0] = FrameMarker
		}
		_, err := DecodeNotification(buf)
		if !errors.Is(err, ErrFrameTooShort) {
			t.Errorf("len %d: err = %v, want ErrFrameTooShort", n, err)
		}
	}
}

func TestDecodeNotificationBadHeader(t *testing.T) {
	buf := testFrame(5812, 0xFF, 0x32, 0xFF, 0xFF)
	buf[0] = 0xF6
	_, err := DecodeNotification(buf)
	if !errors.Is(err, ErrBadHeader) {
		t.Errorf("err = %v, want ErrBadHeader", err)
	}
}

func TestDecodeNotificationKnownFrame(t *testing.T) {
	buf := testFrame(5812, 0xFF, 0x32, 0xFF, 0xFF)

	m, err := DecodeNotification(buf)
	if err != nil {
		t.Fatalf("DecodeNotification() error = %v", err)
	}

	if m.Weight != 58.12 {
		t.Errorf("Weight = %v, want 58.12", m.Weight)
	}
	if m.BodyFat != nil {
		t.Errorf("BodyFat = %v, want absent", *m.BodyFat)
	}
	if m.BodyWater == nil || *m.BodyWater != 5.0 {
		t.Errorf("BodyWater = %v, want 5.0", m.BodyWater)
	}
	if m.MuscleMass != nil {
		t.Errorf("MuscleMass = %v, want absent", *m.MuscleMass)
	}
	if m.BoneMass != nil {
		t.Errorf("BoneMass = %v, want absent", *m.BoneMass)
	}
}

func TestDecodeWeightRoundTripsAllValues(t *testing.T) {
	for raw := 0; raw <= math.MaxUint16; raw++ {
		m, err := DecodeNotification(testFrame(uint16(raw), 0xFF, 0xFF, 0xFF, 0xFF))
		if err != nil {
			t.Fatalf("raw %d: error = %v", raw, err)
		}
		back := int(math.Round(m.Weight * 100))
		if back != raw {
			t.Fatalf("raw %d: decoded %v re-encodes to %d", raw, m.Weight, back)
		}
	}
}

func TestDecodePercentFields(t *testing.T) {
	offsets := []struct {
		name string
		get  func(Measurement) *float64
		set  func(frame []byte, b byte)
	}{
		{"body_fat", func(m Measurement) *float64 { return m.BodyFat }, func(f []byte, b byte) { f[4] = b }},
		{"body_water", func(m Measurement) *float64 { return m.BodyWater }, func(f []byte, b byte) { f[5] = b }},
		{"muscle_mass", func(m Measurement) *float64 { return m.MuscleMass }, func(f []byte, b byte) { f[6] = b }},
		{"bone_mass", func(m Measurement) *float64 { return m.BoneMass }, func(f []byte, b byte) { f[7] = b }},
	}

	for _, field := range offsets {
		t.Run(field.name, func(t *testing.T) {
			for b := 0; b <= 0xFF; b++ {
				frame := testFrame(1000, 0xFF, 0xFF, 0xFF, 0xFF)
				field.set(frame, byte(b))
				m, err := DecodeNotification(frame)
				if err != nil {
					t.Fatalf("byte %#x: error = %v", b, err)
				}
				got := field.get(m)
				if b == 0xFF {
					if got != nil {
						t.Fatalf("byte 0xFF decoded to %v, want absent", *got)
					}
					continue
				}
				if got == nil {
					t.Fatalf("byte %#x decoded to absent", b)
				}
				if want := float64(b) / 10; *got != want {
					t.Fatalf("byte %#x decoded to %v, want %v", b, *got, want)
				}
			}
		})
	}
}

func TestDecodeNotificationDeterministic(t *testing.T) {
	buf := testFrame(7345, 0x12, 0x34, 0x56, 0x78)
	a, errA := DecodeNotification(buf)
	b, errB := DecodeNotification(buf)
	if errA != nil || errB != nil {
		t.Fatalf("errors = %v, %v", errA, errB)
	}
	if a.Weight != b.Weight || *a.BodyFat != *b.BodyFat || *a.BoneMass != *b.BoneMass {
		t.Error("same buffer decoded to different measurements")
	}
}
