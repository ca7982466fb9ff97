package scale

import (
	"encoding/binary"
	"errors"
)

// BF 700 wire protocol constants.
const (
	// FrameMarker is the first byte of every measurement frame.
	FrameMarker = 0xF7

	opcodeInit = 0xF6
	opcodeSync = 0xF9

	// frameLen is the minimum notification length carrying a full frame.
	frameLen = 20

	// percentAbsent is the scale's own "field not supported" sentinel. It
	// is translated to nil at decode time and never surfaced as 25.5%.
	percentAbsent = 0xFF
)

// Command is one of the two documented BF 700 command bytes.
type Command int

const (
	// CmdInit is the legacy wake-up command. Some firmware revisions need
	// it before Sync, others ignore it.
	CmdInit Command = iota
	// CmdSync asks the scale to push its measurement frame.
	CmdSync
)

// Decode failures. Both are local to one notification: the session keeps
// waiting for a later valid frame, and the poller never treats them as
// fatal.
var (
	ErrFrameTooShort = errors.New("scale: frame too short")
	ErrBadHeader     = errors.New("scale: bad frame header")
)

// EncodeCommand returns the 2-byte wire form of cmd.
func EncodeCommand(cmd Command) []byte {
	switch cmd {
	case CmdInit:
		return []byte{opcodeInit, 0x00}
	default:
		return []byte{opcodeSync, 0x00}
	}
}

// DecodeNotification parses one notification buffer into a Measurement.
// Weight is a little-endian uint16 at [2,4) in units of 10 g; the four
// percentage fields are single bytes at offsets 4..7 in units of 0.1%.
func DecodeNotification(buf []byte) (Measurement, error) {
	if len(buf) < frameLen {
		return Measurement{}, ErrFrameTooShort
	}
	if buf[0] != FrameMarker {
		return Measurement{}, ErrBadHeader
	}

	return Measurement{
		Weight:     float64(binary.LittleEndian.Uint16(buf[2:4])) / 100,
		BodyFat:    decodePercent(buf[4]),
		BodyWater:  decodePercent(buf[5]),
		MuscleMass: decodePercent(buf[6]),
		BoneMass:   decodePercent(buf[7]),
	}, nil
}

func decodePercent(b byte) *float64 {
	if b == percentAbsent {
		return nil
	}
	v := float64(b) / 10
	return &v
}
