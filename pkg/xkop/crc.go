// SPDX-License-Identifier: Apache-2.0

package xkop

// crcTable is the 256-entry CRC16 lookup table recovered from captured
// controller traffic (CCITT-style polynomial construction). Built into
// the binary, never mutated, safe for concurrent reads.
var crcTable = [256]uint16{
	0x0000, 0x0F89, 0x1F12, 0x109B, 0x3E24, 0x31AD, 0x2136, 0x2EBF,
	0x7C48, 0x73C1, 0x635A, 0x6CD3, 0x426C, 0x4DE5, 0x5D7E, 0x52F7,
	0xF081, 0xFF08, 0xEF93, 0xE01A, 0xCEA5, 0xC12C, 0xD1B7, 0xDE3E,
	0x8CC9, 0x8340, 0x93DB, 0x9C52, 0xB2ED, 0xBD64, 0xADFF, 0xA276,
	0xE102, 0xEE8B, 0xFE10, 0xF199, 0xDF26, 0xD0AF, 0xC034, 0xCFBD,
	0x9D4A, 0x92C3, 0x8258, 0x8DD1, 0xA36E, 0xACE7, 0xBC7C, 0xB3F5,
	0x1183, 0x1E0A, 0x0E91, 0x0118, 0x2FA7, 0x202E, 0x30B5, 0x3F3C,
	0x6DCB, 0x6242, 0x72D9, 0x7D50, 0x53EF, 0x5C66, 0x4CFD, 0x4374,
	0xC204, 0xCD8D, 0xDD16, 0xD29F, 0xFC20, 0xF3A9, 0xE332, 0xECBB,
	0xBE4C, 0xB1C5, 0xA15E, 0xAED7, 0x8068, 0x8FE1, 0x9F7A, 0x90F3,
	0x3285, 0x3D0C, 0x2D97, 0x221E, 0x0CA1, 0x0328, 0x13B3, 0x1C3A,
	0x4ECD, 0x4144, 0x51DF, 0x5E56, 0x70E9, 0x7F60, 0x6FFB, 0x6072,
	0x2306, 0x2C8F, 0x3C14, 0x339D, 0x1D22, 0x12AB, 0x0230, 0x0DB9,
	0x5F4E, 0x50C7, 0x405C, 0x4FD5, 0x616A, 0x6EE3, 0x7E78, 0x71F1,
	0xD387, 0xDC0E, 0xCC95, 0xC31C, 0xEDA3, 0xE22A, 0xF2B1, 0xFD38,
	0xAFCF, 0xA046, 0xB0DD, 0xBF54, 0x91EB, 0x9E62, 0x8EF9, 0x8170,
	0x8408, 0x8B81, 0x9B1A, 0x9493, 0xBA2C, 0xB5A5, 0xA53E, 0xAAB7,
	0xF840, 0xF7C9, 0xE752, 0xE8DB, 0xC664, 0xC9ED, 0xD976, 0xD6FF,
	0x7489, 0x7B00, 0x6B9B, 0x6412, 0x4AAD, 0x4524, 0x55BF, 0x5A36,
	0x08C1, 0x0748, 0x17D3, 0x185A, 0x36E5, 0x396C, 0x29F7, 0x267E,
	0x650A, 0x6A83, 0x7A18, 0x7591, 0x5B2E, 0x54A7, 0x443C, 0x4BB5,
	0x1942, 0x16CB, 0x0650, 0x09D9, 0x2766, 0x28EF, 0x3874, 0x37FD,
	0x958B, 0x9A02, 0x8A99, 0x8510, 0xABAF, 0xA426, 0xB4BD, 0xBB34,
	0xE9C3, 0xE64A, 0xF6D1, 0xF958, 0xD7E7, 0xD86E, 0xC8F5, 0xC77C,
	0x460C, 0x4985, 0x591E, 0x5697, 0x7828, 0x77A1, 0x673A, 0x68B3,
	0x3A44, 0x35CD, 0x2556, 0x2ADF, 0x0460, 0x0BE9, 0x1B72, 0x14FB,
	0xB68D, 0xB904, 0xA99F, 0xA616, 0x88A9, 0x8720, 0x97BB, 0x9832,
	0xCAC5, 0xC54C, 0xD5D7, 0xDA5E, 0xF4E1, 0xFB68, 0xEBF3, 0xE47A,
	0xA70E, 0xA887, 0xB81C, 0xB795, 0x992A, 0x96A3, 0x8638, 0x89B1,
	0xDB46, 0xD4CF, 0xC454, 0xCBDD, 0xE562, 0xEAEB, 0xFA70, 0xF5F9,
	0x578F, 0x5806, 0x489D, 0x4714, 0x69AB, 0x6622, 0x76B9, 0x7930,
	0x2BC7, 0x244E, 0x34D5, 0x3B5C, 0x15E3, 0x1A6A, 0x0AF1, 0x0578,
}

// Checksum computes the XKOP frame checksum over the 15 non-checksum
// bytes of a frame (header + type + payload) and returns the two trailing
// bytes in wire order (c1, c0).
//
// The running state is seeded from the header signature bytes, not from
// zero. The controller rejects frames computed with a zero seed, so the
// seed is part of the wire contract.
func Checksum(data []byte) (byte, byte) {
	return checksum(data, Header1, Header2)
}

func checksum(data []byte, c1, c0 byte) (byte, byte) {
	for _, b := range data {
		t := crcTable[c1^b]
		c1 = c0 ^ byte(t)
		c0 = byte(t >> 8)
	}
	return c1, c0
}

// Verify recomputes the checksum over the first 15 bytes of a full
// 17-byte frame and compares it byte-for-byte against the trailing two.
// Frames of any other length never verify.
func Verify(frame []byte) bool {
	if len(frame) != FrameSize {
		return false
	}
	c1, c0 := Checksum(frame[:DataSize])
	return c1 == frame[DataSize] && c0 == frame[DataSize+1]
}
