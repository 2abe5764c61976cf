// Outbound publish client
//
// A small RTMP client used to relay a locally-ingested stream onward to
// another RTMP endpoint. Reuses this repo's own handshake (client role),
// command encoding, and chunk writer rather than a separate implementation,
// grounded on alxayo-rtmp-go's internal/rtmp/client.Client (dial + simple
// handshake + connect/createStream/publish dialog), reworked against this
// repo's own handshake.go/command.go/rtmp_packet.go instead of a dedicated
// chunk/amf/rpc package split.

package main

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const outboundDialTimeout = 5 * time.Second
const outboundDefaultChunkSize = 128

// Connection lifecycle states for the outbound publish client.
const (
	OutboundConnecting = "connecting"
	OutboundConnected  = "connected"
	OutboundClosed     = "closed"
)

// OutboundPublishClient dials out to another RTMP endpoint and publishes a
// stream to it, acting as an RTMP client rather than a server.
type OutboundPublishClient struct {
	target *ParsedRTMPURL

	conn   net.Conn
	reader *bufio.Reader

	outChunkSize uint32
	streamID     uint32

	mutex sync.Mutex
	state string

	maxAttempts int
}

// DialOutboundPublish connects to target and runs the connect/publish
// dialog, returning once NetStream.Publish.Start is received or the dialog
// fails. maxAttempts bounds reconnect attempts at 500ms apart (spec-mandated
// outbound sink retry budget); pass 1 to disable retries.
func DialOutboundPublish(target *ParsedRTMPURL, maxAttempts int) (*OutboundPublishClient, error) {
	c := &OutboundPublishClient{
		target:       target,
		outChunkSize: outboundDefaultChunkSize,
		state:        OutboundConnecting,
		maxAttempts:  maxAttempts,
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(500 * time.Millisecond)
		}
		if err := c.connectOnce(); err != nil {
			lastErr = err
			continue
		}
		return c, nil
	}

	return nil, fmt.Errorf("outbound publish: could not connect after %d attempts: %w", maxAttempts, lastErr)
}

func (c *OutboundPublishClient) connectOnce() error {
	d := net.Dialer{Timeout: outboundDialTimeout}

	var conn net.Conn
	var err error
	if c.target.Secure {
		conn, err = tls.DialWithDialer(&d, "tcp", c.target.Host, &tls.Config{})
	} else {
		conn, err = d.Dial("tcp", c.target.Host)
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if err := c.doHandshake(); err != nil {
		conn.Close()
		return err
	}

	if err := c.doConnectDialog(); err != nil {
		conn.Close()
		return err
	}

	c.state = OutboundConnected
	return nil
}

func (c *OutboundPublishClient) doHandshake() error {
	c0c1 := generateC0C1()
	if _, err := c.conn.Write(c0c1); err != nil {
		return fmt.Errorf("write c0c1: %w", err)
	}

	s0s1s2 := make([]byte, 1+2*RTMP_SIG_SIZE)
	if _, err := io.ReadFull(c.reader, s0s1s2); err != nil {
		return fmt.Errorf("read s0s1s2: %w", err)
	}
	if s0s1s2[0] != RTMP_VERSION {
		return errors.New("unsupported RTMP version from peer")
	}
	s1 := s0s1s2[1 : 1+RTMP_SIG_SIZE]

	c2 := generateC2(s1)
	if _, err := c.conn.Write(c2); err != nil {
		return fmt.Errorf("write c2: %w", err)
	}

	return nil
}

func (c *OutboundPublishClient) sendCommand(streamID uint32, cmd RTMPCommand) error {
	packet := createBlankRTMPPacket()
	packet.header.fmt = RTMP_CHUNK_TYPE_0
	packet.header.cid = RTMP_CHANNEL_INVOKE
	packet.header.packet_type = RTMP_TYPE_INVOKE
	packet.header.stream_id = streamID
	packet.payload = cmd.Encode()
	packet.header.length = uint32(len(packet.payload))

	bytes := packet.CreateChunks(int(c.outChunkSize))
	_, err := c.conn.Write(bytes)
	return err
}

// readNextCommand reads chunks until a full INVOKE message is reassembled,
// ignoring protocol-control messages in between.
func (c *OutboundPublishClient) readNextCommand() (*RTMPCommand, error) {
	packets := make(map[uint32]*RTMPPacket)

	for {
		startByte, err := c.reader.ReadByte()
		if err != nil {
			return nil, err
		}

		header := []byte{startByte}
		var basicBytes int
		switch {
		case (startByte & 0x3f) == 0:
			basicBytes = 2
		case (startByte & 0x3f) == 1:
			basicBytes = 3
		default:
			basicBytes = 1
		}
		for i := 1; i < basicBytes; i++ {
			b, err := c.reader.ReadByte()
			if err != nil {
				return nil, err
			}
			header = append(header, b)
		}

		size := int(rtmpHeaderSize[header[0]>>6])
		if size > 0 {
			rest := make([]byte, size)
			if _, err := io.ReadFull(c.reader, rest); err != nil {
				return nil, err
			}
			header = append(header, rest...)
		}

		fmtType := uint32(header[0] >> 6)
		var cid uint32
		switch basicBytes {
		case 2:
			cid = 64 + uint32(header[1])
		case 3:
			cid = 64 + uint32(header[1]) + (uint32(header[2]) << 8)
		default:
			cid = uint32(header[0] & 0x3f)
		}

		packet := packets[cid]
		if packet == nil {
			bp := createBlankRTMPPacket()
			packet = &bp
			packets[cid] = packet
		}
		packet.header.cid = cid
		packet.header.fmt = fmtType

		offset := basicBytes
		if fmtType <= RTMP_CHUNK_TYPE_2 {
			offset += 3 // timestamp, not tracked by this reader
		}
		if fmtType <= RTMP_CHUNK_TYPE_1 {
			packet.header.length = (uint32(header[offset]) << 16) | (uint32(header[offset+1]) << 8) | uint32(header[offset+2])
			packet.header.packet_type = uint32(header[offset+3])
			offset += 4
		}
		if fmtType == RTMP_CHUNK_TYPE_0 {
			offset += 4 // stream id, not needed here
		}

		toRead := c.outChunkSize - (packet.bytes % c.outChunkSize)
		if toRead > packet.header.length-packet.bytes {
			toRead = packet.header.length - packet.bytes
		}
		if toRead > 0 {
			chunk := make([]byte, toRead)
			if _, err := io.ReadFull(c.reader, chunk); err != nil {
				return nil, err
			}
			packet.bytes += toRead
			packet.payload = append(packet.payload, chunk...)
		}

		if packet.bytes >= packet.header.length {
			if packet.header.packet_type == RTMP_TYPE_INVOKE {
				cmd := decodeRTMPCommand(packet.payload)
				return &cmd, nil
			}
			packet.bytes = 0
			packet.payload = nil
		}
	}
}

func (c *OutboundPublishClient) waitForResult(expectCmd string) (*RTMPCommand, error) {
	for {
		cmd, err := c.readNextCommand()
		if err != nil {
			return nil, err
		}
		if cmd.cmd == "_error" {
			return nil, fmt.Errorf("%s rejected by peer", expectCmd)
		}
		if cmd.cmd == "_result" || cmd.cmd == "onStatus" || cmd.cmd == "onFCPublish" {
			return cmd, nil
		}
		// Ignore anything else (pings, unrelated events) and keep reading.
	}
}

func (c *OutboundPublishClient) doConnectDialog() error {
	cmdObj := createAMF0Value(AMF0_TYPE_OBJECT)
	app := createAMF0Value(AMF0_TYPE_STRING)
	app.str_val = c.target.App
	cmdObj.obj_val["app"] = &app

	transId := createAMF0Value(AMF0_TYPE_NUMBER)
	transId.SetIntegerVal(1)

	connectCmd := RTMPCommand{
		cmd: "connect",
		arguments: map[string]*AMF0Value{
			"transId": &transId,
			"cmdObj":  &cmdObj,
		},
	}
	if err := c.sendCommand(0, connectCmd); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}
	if _, err := c.waitForResult("connect"); err != nil {
		return err
	}

	if err := c.sendSimpleCommand(0, "releaseStream", 2, c.target.Key); err != nil {
		return err
	}
	if _, err := c.waitForResult("releaseStream"); err != nil {
		return err
	}

	if err := c.sendSimpleCommand(0, "FCPublish", 3, c.target.Key); err != nil {
		return err
	}
	if _, err := c.waitForResult("FCPublish"); err != nil {
		return err
	}

	createStreamTransId := createAMF0Value(AMF0_TYPE_NUMBER)
	createStreamTransId.SetIntegerVal(4)
	cmdObjNull := createAMF0Value(AMF0_TYPE_NULL)
	createStreamCmd := RTMPCommand{
		cmd: "createStream",
		arguments: map[string]*AMF0Value{
			"transId": &createStreamTransId,
			"cmdObj":  &cmdObjNull,
		},
	}
	if err := c.sendCommand(0, createStreamCmd); err != nil {
		return fmt.Errorf("send createStream: %w", err)
	}
	result, err := c.waitForResult("createStream")
	if err != nil {
		return err
	}
	if info := result.GetArg("info"); !info.IsUndefined() {
		c.streamID = uint32(info.GetInteger())
	} else {
		c.streamID = 1
	}

	streamNameArg := createAMF0Value(AMF0_TYPE_STRING)
	streamNameArg.str_val = c.target.Key
	publishTypeArg := createAMF0Value(AMF0_TYPE_STRING)
	publishTypeArg.str_val = "live"
	publishTransId := createAMF0Value(AMF0_TYPE_NUMBER)
	publishTransId.SetIntegerVal(5)
	publishCmdObj := createAMF0Value(AMF0_TYPE_NULL)

	publishCmd := RTMPCommand{
		cmd: "publish",
		arguments: map[string]*AMF0Value{
			"transId":     &publishTransId,
			"cmdObj":      &publishCmdObj,
			"streamName":  &streamNameArg,
			"publishType": &publishTypeArg,
		},
	}
	if err := c.sendCommand(c.streamID, publishCmd); err != nil {
		return fmt.Errorf("send publish: %w", err)
	}
	result, err = c.waitForResult("publish")
	if err != nil {
		return err
	}
	if code := result.GetArg("info").GetProperty("code").GetString(); code != "NetStream.Publish.Start" {
		return fmt.Errorf("publish rejected by peer: %s", code)
	}

	return nil
}

func (c *OutboundPublishClient) sendSimpleCommand(streamID uint32, name string, transId int64, streamKey string) error {
	transIdVal := createAMF0Value(AMF0_TYPE_NUMBER)
	transIdVal.SetIntegerVal(transId)
	cmdObjNull := createAMF0Value(AMF0_TYPE_NULL)
	streamNameVal := createAMF0Value(AMF0_TYPE_STRING)
	streamNameVal.str_val = streamKey

	cmd := RTMPCommand{
		cmd: name,
		arguments: map[string]*AMF0Value{
			"transId":    &transIdVal,
			"cmdObj":     &cmdObjNull,
			"streamName": &streamNameVal,
		},
	}

	return c.sendCommand(streamID, cmd)
}

// WriteAudio relays one audio RTMP message downstream.
func (c *OutboundPublishClient) WriteAudio(timestamp int64, payload []byte) error {
	return c.writeMediaPacket(RTMP_CHANNEL_AUDIO, RTMP_TYPE_AUDIO, timestamp, payload)
}

// WriteVideo relays one video RTMP message downstream.
func (c *OutboundPublishClient) WriteVideo(timestamp int64, payload []byte) error {
	return c.writeMediaPacket(RTMP_CHANNEL_VIDEO, RTMP_TYPE_VIDEO, timestamp, payload)
}

func (c *OutboundPublishClient) writeMediaPacket(cid uint32, packetType uint32, timestamp int64, payload []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != OutboundConnected {
		return errors.New("outbound publish client is not connected")
	}

	packet := createBlankRTMPPacket()
	packet.header.fmt = RTMP_CHUNK_TYPE_0
	packet.header.cid = cid
	packet.header.packet_type = packetType
	packet.header.stream_id = c.streamID
	packet.header.timestamp = timestamp
	packet.payload = payload
	packet.header.length = uint32(len(payload))

	bytes := packet.CreateChunks(int(c.outChunkSize))
	_, err := c.conn.Write(bytes)
	return err
}

// Close ends the outbound connection.
func (c *OutboundPublishClient) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.state = OutboundClosed
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
