package main

import (
	"net"
	"testing"
	"time"
)

// fakeClientHandler is a ClientHandler double that records what it was
// called with instead of logging or relaying anywhere.
type fakeClientHandler struct {
	initCalled  bool
	endCalled   bool
	grantOnInit int64 // 0 means HandleInit grants nothing
	frames      [][]byte
}

func (h *fakeClientHandler) HandleInit(s *RTMPSession) {
	h.initCalled = true
	if h.grantOnInit != 0 {
		s.GrantDemand(h.grantOnInit)
	}
}

func (h *fakeClientHandler) HandleDataAvailable(s *RTMPSession, tagType byte, payload []byte, timestamp int64) {
	h.frames = append(h.frames, payload)
}

func (h *fakeClientHandler) HandleInfo(s *RTMPSession, metaData map[string]*AMF0Value) {}

func (h *fakeClientHandler) HandleEndOfStream(s *RTMPSession) { h.endCalled = true }

func publishCommand(streamKey string) (*RTMPCommand, *RTMPPacket) {
	transId := numberValue(5)
	cmdObj := createAMF0Value(AMF0_TYPE_NULL)
	streamName := stringValue(streamKey)
	publishType := stringValue("live")

	cmd := &RTMPCommand{
		cmd: "publish",
		arguments: map[string]*AMF0Value{
			"transId":     &transId,
			"cmdObj":      &cmdObj,
			"streamName":  &streamName,
			"publishType": &publishType,
		},
	}

	packet := createBlankRTMPPacket()
	packet.header.stream_id = 1

	return cmd, &packet
}

// drainConn discards everything written to conn until it errors (typically
// because the peer closed it), then closes done.
func drainConn(conn net.Conn, done chan struct{}) {
	buf := make([]byte, 4096)
	for {
		if _, err := conn.Read(buf); err != nil {
			close(done)
			return
		}
	}
}

// A successful Publish attaches the configured handler and sends
// StreamBegin immediately, but withholds NetStream.Publish.Start until the
// handler actually grants demand.
func TestHandlePublishAttachesHandlerAndGatesPublishStart(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	session := newTestSession(serverConn)
	session.isConnected = true
	session.channel = "live"

	handler := &fakeClientHandler{}
	session.server.newClientHandler = func(s *RTMPSession, app string, streamKey string) ClientHandler {
		return handler
	}

	done := make(chan struct{})
	go drainConn(clientConn, done)

	cmd, packet := publishCommand("stream1")
	if !session.HandlePublish(cmd, packet) {
		t.Fatalf("expected HandlePublish to succeed")
	}

	if !handler.initCalled {
		t.Fatalf("expected the configured handle_new_client factory's handler to receive HandleInit")
	}
	if session.handler == nil {
		t.Fatalf("expected session.handler to be attached after Publish")
	}
	if session.publishStartSent {
		t.Fatalf("expected NetStream.Publish.Start to be withheld until a demand grant")
	}
	if session.publishTimeoutTimer == nil {
		t.Fatalf("expected an await-demand timeout to be scheduled")
	}

	session.GrantDemand(3)

	if !session.publishStartSent {
		t.Fatalf("expected the first demand grant to release NetStream.Publish.Start")
	}

	session.Kill()
	<-done
}

// If no demand_data arrives before clientTimeout, the session closes the
// connection rather than waiting forever.
func TestPublishTimeoutClosesConnectionWithoutDemand(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	session := newTestSession(serverConn)
	session.isConnected = true
	session.channel = "live"
	session.server.clientTimeout = 10 * time.Millisecond
	session.server.newClientHandler = func(s *RTMPSession, app string, streamKey string) ClientHandler {
		return &fakeClientHandler{} // never grants demand
	}

	done := make(chan struct{})
	go drainConn(clientConn, done)

	cmd, packet := publishCommand("stream1")
	if !session.HandlePublish(cmd, packet) {
		t.Fatalf("expected HandlePublish to succeed")
	}

	select {
	case <-done:
		// Connection was closed by the timeout, as expected.
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("expected the publish-await-demand timeout to close the connection")
	}
}

// Once demand is granted, delivered audio/video frames are FLV tags, with
// the 13-byte FLV header prepended to exactly the first one.
func TestAudioVideoDeliveryProducesFlvHeaderThenTags(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	session := newTestSession(serverConn)
	session.isConnected = true
	session.channel = "live"
	session.isPublishing = true

	handler := &fakeClientHandler{}
	session.handler = handler
	session.demand.Unbounded()

	audioPacket := createBlankRTMPPacket()
	audioPacket.header.packet_type = RTMP_TYPE_AUDIO
	audioPacket.header.length = 3
	audioPacket.header.timestamp = 10
	audioPacket.payload = []byte{0xAF, 0x01, 0x02}
	if !session.HandleAudioPacket(&audioPacket) {
		t.Fatalf("unexpected failure handling audio packet")
	}

	videoPacket := createBlankRTMPPacket()
	videoPacket.header.packet_type = RTMP_TYPE_VIDEO
	videoPacket.header.length = 2
	videoPacket.header.timestamp = 20
	videoPacket.payload = []byte{0x17, 0x01}
	if !session.HandleVideoPacket(&videoPacket) {
		t.Fatalf("unexpected failure handling video packet")
	}

	if len(handler.frames) != 2 {
		t.Fatalf("expected 2 delivered frames, got %d", len(handler.frames))
	}

	first := handler.frames[0]
	if string(first[0:3]) != "FLV" {
		t.Fatalf("expected the first delivered frame to start with the FLV header, got %v", first[0:3])
	}
	firstTag := first[13:]
	if firstTag[0] != FlvTagAudio {
		t.Fatalf("expected the first tag (after the header) to be an audio tag")
	}

	second := handler.frames[1]
	if string(second[0:3]) == "FLV" {
		t.Fatalf("expected the FLV header to be sent only once")
	}
	if second[0] != FlvTagVideo {
		t.Fatalf("expected the second tag to be a video tag")
	}
}
