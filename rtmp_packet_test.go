package main

import (
	"bufio"
	"bytes"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"
)

func newTestSession(conn net.Conn) *RTMPSession {
	server := &RTMPServer{
		mutex:            &sync.Mutex{},
		sessions:         make(map[uint64]*RTMPSession),
		registry:         NewChannelRegistry(4, ""),
		validator:        NewDefaultValidator(streamIdMaxLengthDefault),
		outChunkSize:     RTMP_CHUNK_SIZE,
		clientTimeout:    time.Duration(RTMP_CLIENT_TIMEOUT_DEFAULT) * time.Millisecond,
		newClientHandler: DefaultClientHandlerFactory,
	}
	s := CreateRTMPSession(server, 1, "127.0.0.1", conn)
	return &s
}

// P2/P4: a single message chunked at several outbound sizes and csid values
// (fmt=0 first chunk, fmt=3 continuations) reassembles to the original
// payload with its csid intact.
func TestChunkRoundTrip(t *testing.T) {
	sizes := []int{128, 256, 4096}
	cids := []uint32{2, 63, 64, 319, 320, 65599}

	for _, outChunkSize := range sizes {
		for _, cid := range cids {
			payload := make([]byte, 1000)
			rand.Read(payload)

			packet := createBlankRTMPPacket()
			packet.header.fmt = RTMP_CHUNK_TYPE_0
			packet.header.cid = cid
			packet.header.packet_type = RTMP_TYPE_AUDIO
			packet.header.length = uint32(len(payload))
			packet.header.timestamp = 1000
			packet.payload = payload

			wire := packet.CreateChunks(outChunkSize)

			clientConn, serverConn := net.Pipe()
			session := newTestSession(serverConn)
			session.inChunkSize = uint32(outChunkSize)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				clientConn.Write(wire)
			}()

			reader := bufio.NewReader(serverConn)
			var got *RTMPPacket
			for i := 0; i < 64; i++ {
				if !session.ReadChunk(reader) {
					t.Fatalf("ReadChunk failed for cid=%d chunkSize=%d", cid, outChunkSize)
				}
				p := session.inPackets[cid]
				if p != nil && p.handled && p.bytes >= p.header.length {
					got = p
					break
				}
			}
			clientConn.Close()
			serverConn.Close()
			wg.Wait()

			if got == nil {
				t.Fatalf("packet for cid=%d chunkSize=%d never completed", cid, outChunkSize)
			}
			if !bytes.Equal(got.payload, payload) {
				t.Fatalf("payload mismatch for cid=%d chunkSize=%d", cid, outChunkSize)
			}
			if got.header.cid != cid {
				t.Fatalf("cid mismatch: got %d want %d", got.header.cid, cid)
			}
		}
	}
}

// P3, basic-header layer only: the fmt selector written by
// rtmpChunkBasicHeaderCreate reads back as fmt=0 for a full header and fmt=3
// for a continuation. CreateChunks does not itself switch later messages on
// a csid to fmt=1/2; it uses whatever fmt the caller put in the header.
func TestChunkBasicHeaderCompression(t *testing.T) {
	cid := uint32(5)

	full := rtmpChunkBasicHeaderCreate(RTMP_CHUNK_TYPE_0, cid)
	continuation := rtmpChunkBasicHeaderCreate(RTMP_CHUNK_TYPE_3, cid)

	if full[0]>>6 != RTMP_CHUNK_TYPE_0 {
		t.Fatalf("expected first header fmt=0, got %d", full[0]>>6)
	}
	if continuation[0]>>6 != RTMP_CHUNK_TYPE_3 {
		t.Fatalf("expected continuation header fmt=3, got %d", continuation[0]>>6)
	}
}

func TestChunkBasicHeaderCsidBoundaries(t *testing.T) {
	cases := []struct {
		cid        uint32
		headerSize int
	}{
		{2, 1},
		{63, 1},
		{64, 2},
		{318, 2},
		{319, 3},
		{320, 3},
		{65599, 3},
	}

	for _, c := range cases {
		h := rtmpChunkBasicHeaderCreate(RTMP_CHUNK_TYPE_0, c.cid)
		if len(h) != c.headerSize {
			t.Fatalf("cid=%d: expected basic header of %d bytes, got %d", c.cid, c.headerSize, len(h))
		}
	}
}
