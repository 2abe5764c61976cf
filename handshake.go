// RTMP Handshake
//
// Plain C0/C1/C2 <-> S0/S1/S2 echo handshake: no Adobe HMAC digest step.
// C1 is 1536 bytes (4-byte time + 4-byte zero + 1528 random bytes); S1 is
// generated the same way; S2 echoes C1 back (with its "time2" field set
// to the time value C1 carried) and C2 is expected to echo S1 back. Mismatches
// are logged, never treated as a fatal error, matching how permissive real
// players are about this step.

package main

import (
	"crypto/rand"
	"encoding/binary"
)

const RTMP_SIG_SIZE = 1536

// Builds a C1/S1-shaped handshake packet: time(4) + zero(4) + random(1528).
// time - Epoch value to place in the first 4 bytes
func buildHandshakePacket(time uint32) []byte {
	b := make([]byte, RTMP_SIG_SIZE)

	binary.BigEndian.PutUint32(b[0:4], time)
	binary.BigEndian.PutUint32(b[4:8], 0)

	_, err := rand.Read(b[8:])
	if err != nil {
		// crypto/rand failing means the host is unusable; there is no
		// sensible fallback here.
		panic(err)
	}

	return b
}

// Generates the S0+S1+S2 response to a received C1.
// c1 - The 1536-byte C1 payload received from the client
// Returns the bytes to send (version byte + S1 + S2)
func generateS0S1S2(c1 []byte) []byte {
	s0 := []byte{RTMP_VERSION}
	s1 := buildHandshakePacket(0)

	// S2 echoes C1 back, with time2 set to the time the peer's C1 carried.
	s2 := make([]byte, RTMP_SIG_SIZE)
	copy(s2, c1)
	binary.BigEndian.PutUint32(s2[4:8], binary.BigEndian.Uint32(c1[0:4]))

	out := make([]byte, 0, len(s0)+len(s1)+len(s2))
	out = append(out, s0...)
	out = append(out, s1...)
	out = append(out, s2...)
	return out
}

// Builds the client-role C0+C1 to send when dialing out as a publisher.
func generateC0C1() []byte {
	c0 := []byte{RTMP_VERSION}
	c1 := buildHandshakePacket(0)
	return append(c0, c1...)
}

// Builds the client-role C2 in response to a received S1.
// s1 - The 1536-byte S1 payload received from the server
func generateC2(s1 []byte) []byte {
	c2 := make([]byte, RTMP_SIG_SIZE)
	copy(c2, s1)
	binary.BigEndian.PutUint32(c2[4:8], binary.BigEndian.Uint32(s1[0:4]))
	return c2
}

// Checks that a received S2/C2 echoes the payload that was sent as S1/C1.
// Mismatches are not fatal: some clients rewrite the random padding, and
// spec compliance here is advisory, not required for the session to proceed.
// sent - The payload this side sent (C1 or S1)
// echoed - The payload the peer echoed back (S2 or C2)
// Returns true if the echoed random payload matches
func verifyEcho(sent []byte, echoed []byte) bool {
	if len(sent) != RTMP_SIG_SIZE || len(echoed) != RTMP_SIG_SIZE {
		return false
	}
	for i := 8; i < RTMP_SIG_SIZE; i++ {
		if sent[i] != echoed[i] {
			return false
		}
	}
	return true
}
