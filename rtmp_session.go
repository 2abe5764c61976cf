// RTMP session

package main

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Structure to store the bit rate status
type BitRateCache struct {
	intervalMs  int64  // Interval of milliseconds to update
	last_update int64  // Last time updated (unix milliseconds)
	bytes       uint64 // The number of bytes received
}

// Stores the status of a RTMP session
type RTMPSession struct {
	server *RTMPServer // Reference to the server

	conn net.Conn // TCP connection

	id uint64 // Session ID
	ip string // IP address of the client

	inChunkSize  uint32 // Chunk size of incoming packets
	outChunkSize uint32 //  Chunks size for outgoing packets

	ackSize   uint32 // Acknowledge size required by the client
	inAckSize uint32 // Amount of bytes acknowledged
	inLastAck uint32 // This is used to count bytes that must be acknowledged

	objectEncoding uint32 // Encoding format required by the client

	connectTime int64 // Connection time (unix milliseconds)

	mutex *sync.Mutex // Mutex to control access to the session status data

	publish_mutex *sync.Mutex // Mutex to control the publishing group

	inPackets map[uint32]*RTMPPacket // RTMP packets storage. Map: Channel ID -> Packet. Packets are received in chunks, so they are stored until the last chunk is received.

	publishStreamId uint32 // ID of the stream being published
	streams         uint32 // Number of associated streams

	channel   string // Streaming channel ID
	key       string // Streaming key
	stream_id string // Stream ID

	isConnected  bool // True if the client sent the connect message
	isPublishing bool // True if the client is publishing

	metaData          []byte // Metadata for the stream being published
	audioCodec        uint32 // Audio codec
	videoCodec        uint32 // Video codec
	aacSequenceHeader []byte // Sequence header for AAC codec (Audio)
	avcSequenceHeader []byte // Sequence header for AVC codec (Video)

	clock int64 // Current clock value

	bitRate      uint64       // Bitrate (bit/ms)
	bitRateCache BitRateCache // Cache to compute bit rate

	handler ClientHandler // Consumer of FLV events for this session, gated by demand
	demand  *DemandCounter

	flvHeaderSent    bool // True once the FLV file header has been handed to the handler
	publishStartSent bool // True once NetStream.Publish.Start has been sent (first demand grant)

	publishTimeoutTimer *time.Timer // Closes the socket if no demand arrives in time
}

// Creates a RTMP session
// server - Server that accepted the connection
// id - Session ID
// ip - Client IP address
// c - TCP connection
// Returns the session
func CreateRTMPSession(server *RTMPServer, id uint64, ip string, c net.Conn) RTMPSession {
	return RTMPSession{
		server:        server,
		conn:          c,
		ip:            ip,
		mutex:         &sync.Mutex{},
		publish_mutex: &sync.Mutex{},
		id:            id,
		inChunkSize:   RTMP_CHUNK_SIZE,
		outChunkSize:  server.outChunkSize,
		inPackets:     make(map[uint32]*RTMPPacket),
		ackSize:       0,
		inAckSize:     0,
		inLastAck:     0,

		bitRate: 0,
		bitRateCache: BitRateCache{
			intervalMs:  1000,
			last_update: 0,
			bytes:       0,
		},

		objectEncoding:  0,
		streams:         0,
		publishStreamId: 0,

		isConnected:  false,
		isPublishing: false,

		metaData:          make([]byte, 0),
		audioCodec:        0,
		videoCodec:        0,
		aacSequenceHeader: make([]byte, 0),
		avcSequenceHeader: make([]byte, 0),
		clock:             0,

		channel:   "",
		key:       "",
		stream_id: "",

		demand: NewDemandCounter(),
	}
}

// Sends data to the client
// b - The bytes to send
func (s *RTMPSession) SendSync(b []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.conn.Write(b) //nolint:errcheck
}

// Closes the connection
func (s *RTMPSession) Kill() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.conn.Close()
}

// Returns the stream path: /{CHANNEL}/{KEY}
func (s *RTMPSession) GetStreamPath() string {
	return "/" + s.channel + "/" + s.key
}

// Handles the session
// Does the handshake and starts reading the chunks
func (s *RTMPSession) HandleSession() {
	r := bufio.NewReader(s.conn)

	e := s.conn.SetReadDeadline(time.Now().Add(RTMP_PING_TIMEOUT * time.Millisecond))
	if e != nil {
		return
	}

	// Handshake

	version, e := r.ReadByte()
	if e != nil {
		return
	}

	if version != RTMP_VERSION {
		LogDebugSession(s.id, s.ip, "Invalid protocol version received")
		return
	}

	c1 := make([]byte, RTMP_HANDSHAKE_SIZE)
	e = s.conn.SetReadDeadline(time.Now().Add(RTMP_PING_TIMEOUT * time.Millisecond))
	if e != nil {
		LogDebugSession(s.id, s.ip, "Could not set deadline: "+e.Error())
		return
	}
	n, e := io.ReadFull(r, c1)
	if e != nil || n != RTMP_HANDSHAKE_SIZE {
		LogDebugSession(s.id, s.ip, "Invalid handshake received")
		return
	}

	s0s1s2 := generateS0S1S2(c1)
	n, e = s.conn.Write(s0s1s2)
	if e != nil || n != len(s0s1s2) {
		LogDebugSession(s.id, s.ip, "Could not send handshake message")
		return
	}

	c2 := make([]byte, RTMP_HANDSHAKE_SIZE)
	e = s.conn.SetReadDeadline(time.Now().Add(RTMP_PING_TIMEOUT * time.Millisecond))
	if e != nil {
		LogDebugSession(s.id, s.ip, "Could not set deadline: "+e.Error())
		return
	}
	n, e = io.ReadFull(r, c2)
	if e != nil || n != RTMP_HANDSHAKE_SIZE {
		LogDebugSession(s.id, s.ip, "Invalid handshake response received")
		return
	}

	if !verifyEcho(s0s1s2[1:1+RTMP_HANDSHAKE_SIZE], c2) {
		LogDebugSession(s.id, s.ip, "Handshake echo mismatch (ignored)")
	}

	// Read RTMP chunks
	for {
		if !s.ReadChunk(r) {
			return
		}
	}
}

// Reads a chunk
// r - Buffered reader associated with the TCP connection
// Returns true if success, false if the connection is closed
func (s *RTMPSession) ReadChunk(r *bufio.Reader) bool {
	var bytesReadCount uint32
	bytesReadCount = 0

	e := s.conn.SetReadDeadline(time.Now().Add(RTMP_PING_TIMEOUT * time.Millisecond))
	if e != nil {
		LogDebugSession(s.id, s.ip, "Could not set deadline: "+e.Error())
		return false
	}
	startByte, e := r.ReadByte()
	bytesReadCount++
	if e != nil {
		LogDebugSession(s.id, s.ip, "Could not read chunk start byte. "+e.Error())
		return false
	}

	var header []byte
	header = []byte{startByte}

	var parserBasicBytes int
	if (startByte & 0x3f) == 0 {
		parserBasicBytes = 2
	} else if (startByte & 0x3f) == 1 {
		parserBasicBytes = 3
	} else {
		parserBasicBytes = 1
	}

	for i := 1; i < parserBasicBytes; i++ {
		e := s.conn.SetReadDeadline(time.Now().Add(RTMP_PING_TIMEOUT * time.Millisecond))
		if e != nil {
			LogDebugSession(s.id, s.ip, "Could not set deadline: "+e.Error())
			return false
		}
		b, e := r.ReadByte()
		bytesReadCount++
		if e != nil {
			LogDebugSession(s.id, s.ip, "Could not read chunk basic bytes")
			return false
		}

		header = append(header, b)
	}

	size := int(rtmpHeaderSize[header[0]>>6])
	if size > 0 {
		headerLeft := make([]byte, size)
		e := s.conn.SetReadDeadline(time.Now().Add(RTMP_PING_TIMEOUT * time.Millisecond))
		if e != nil {
			LogDebugSession(s.id, s.ip, "Could set deadline: "+e.Error())
			return false
		}
		n, e := io.ReadFull(r, headerLeft)
		bytesReadCount += uint32(size)
		if e != nil || n != size {
			LogDebugSession(s.id, s.ip, "Could not read chunk header")
			return false
		}
		header = append(header, headerLeft...)
	}

	var fmt uint32
	var cid uint32
	fmt = uint32(header[0] >> 6)
	switch parserBasicBytes {
	case 2:
		cid = 64 + uint32(header[1])
	case 3:
		cid = 64 + uint32(header[1]) + (uint32(header[2]) << 8)
	default:
		cid = uint32(header[0] & 0x3f)
	}

	var packet *RTMPPacket

	if s.inPackets[cid] != nil {
		packet = s.inPackets[cid]
		if packet.handled {
			packet.handled = false
			packet.payload = make([]byte, 0)
			packet.bytes = 0
		}
	} else {
		bp := createBlankRTMPPacket()
		packet = &bp
		s.inPackets[cid] = packet
	}

	packet.header.cid = cid
	packet.header.fmt = fmt

	offset := parserBasicBytes

	if packet.header.fmt <= RTMP_CHUNK_TYPE_2 {
		tsBytes := make([]byte, 3)
		copy(tsBytes, header[offset:offset+3])
		packet.header.timestamp = int64((uint32(tsBytes[2])) | (uint32(tsBytes[1]) << 8) | (uint32(tsBytes[0]) << 16))
		offset += 3
	}

	if packet.header.fmt <= RTMP_CHUNK_TYPE_1 {
		tsBytes := make([]byte, 3)
		copy(tsBytes, header[offset:offset+3])
		packet.header.length = (uint32(tsBytes[2])) | (uint32(tsBytes[1]) << 8) | (uint32(tsBytes[0]) << 16)
		packet.header.packet_type = uint32(header[offset+3])
		offset += 4
	}

	if packet.header.fmt == RTMP_CHUNK_TYPE_0 {
		packet.header.stream_id = binary.LittleEndian.Uint32(header[offset : offset+4])
	}

	if packet.header.packet_type > RTMP_TYPE_METADATA {
		LogDebugSession(s.id, s.ip, "Received stop packet: "+strconv.Itoa(int(packet.header.packet_type)))
		return false
	}

	var extended_timestamp int64
	if packet.header.timestamp == 0xffffff {
		tsBytes := make([]byte, 4)
		e := s.conn.SetReadDeadline(time.Now().Add(RTMP_PING_TIMEOUT * time.Millisecond))
		if e != nil {
			LogDebugSession(s.id, s.ip, "Could not set deadline: "+e.Error())
			return false
		}
		n, e := io.ReadFull(r, tsBytes)
		bytesReadCount += 4
		if e != nil || n != 4 {
			LogDebugSession(s.id, s.ip, "Could not read extended timestamp")
			return false
		}
		extended_timestamp = int64(binary.BigEndian.Uint32(tsBytes))
	} else {
		extended_timestamp = packet.header.timestamp
	}

	if packet.bytes == 0 {
		if packet.header.fmt == RTMP_CHUNK_TYPE_0 {
			packet.clock = extended_timestamp
		} else {
			packet.clock += extended_timestamp
		}

		s.clock = packet.clock

		if packet.capacity < packet.header.length {
			packet.capacity = 1024 + packet.header.length
		}
	}

	var sizeToRead uint32
	sizeToRead = s.inChunkSize - (packet.bytes % s.inChunkSize)
	if sizeToRead > (packet.header.length - packet.bytes) {
		sizeToRead = packet.header.length - packet.bytes
	}
	if sizeToRead > 0 {
		bytesToRead := make([]byte, sizeToRead)
		e := s.conn.SetReadDeadline(time.Now().Add(RTMP_PING_TIMEOUT * time.Millisecond))
		if e != nil {
			LogDebugSession(s.id, s.ip, "Could not set deadline: "+e.Error())
			return false
		}
		n, e := io.ReadFull(r, bytesToRead)
		bytesReadCount += sizeToRead
		if e != nil || uint32(n) != sizeToRead {
			if e != nil {
				LogDebugSession(s.id, s.ip, "Error: "+e.Error())
			}
			LogDebugSession(s.id, s.ip, "Could not read chunk payload")
			return false
		}

		packet.bytes += sizeToRead
		packet.payload = append(packet.payload, bytesToRead...)
	}

	if packet.bytes >= packet.header.length {
		packet.handled = true
		if packet.clock <= 0xffffffff {
			if !s.HandlePacket(packet) {
				LogDebugSession(s.id, s.ip, "Could not handle packet")
				return false
			}
		}
	}

	s.inAckSize += bytesReadCount
	if s.inAckSize >= 0xf0000000 {
		s.inAckSize = 0
		s.inLastAck = 0
	}
	if s.ackSize > 0 && s.inAckSize-s.inLastAck >= s.ackSize {
		s.inLastAck = s.inAckSize
		if !s.SendACK(s.inAckSize) {
			LogDebugSession(s.id, s.ip, "Could not send ACK")
			return false
		}
	}

	now := time.Now().UnixMilli()
	s.bitRateCache.bytes += uint64(bytesReadCount)
	diff := now - s.bitRateCache.last_update
	if diff >= s.bitRateCache.intervalMs {
		s.bitRate = uint64(math.Round(float64(s.bitRateCache.bytes) * 8 / float64(diff)))
		s.bitRateCache.bytes = 0
		s.bitRateCache.last_update = now
	}

	return true
}

// Handles a packet
// packet - The received packet
func (s *RTMPSession) HandlePacket(packet *RTMPPacket) bool {
	switch packet.header.packet_type {
	case RTMP_TYPE_SET_CHUNK_SIZE:
		csb := packet.payload[0:4]
		s.inChunkSize = binary.BigEndian.Uint32(csb)
	case RTMP_TYPE_WINDOW_ACKNOWLEDGEMENT_SIZE:
		csb := packet.payload[0:4]
		s.ackSize = binary.BigEndian.Uint32(csb)
	case RTMP_TYPE_AUDIO:
		return s.HandleAudioPacket(packet)
	case RTMP_TYPE_VIDEO:
		return s.HandleVideoPacket(packet)
	case RTMP_TYPE_FLEX_MESSAGE:
		return s.HandleInvoke(packet)
	case RTMP_TYPE_INVOKE:
		return s.HandleInvoke(packet)
	case RTMP_TYPE_DATA:
		return s.HandleDataPacketAMF0(packet)
	case RTMP_TYPE_FLEX_STREAM:
		return s.HandleDataPacketAMF3(packet)
	default:
		LogDebugSession(s.id, s.ip, "Received packet: "+strconv.Itoa(int(packet.header.packet_type)))
	}

	return true
}

// Handles an INVOKE packet
// packet - The packet
func (s *RTMPSession) HandleInvoke(packet *RTMPPacket) bool {
	var offset uint32
	if packet.header.packet_type == RTMP_TYPE_FLEX_MESSAGE {
		offset = 1
	} else {
		offset = 0
	}

	payload := packet.payload[offset:packet.header.length]

	cmd := decodeRTMPCommand(payload)

	LogDebugSession(s.id, s.ip, "Received invoke: "+cmd.ToString())

	switch cmd.cmd {
	case "connect":
		return s.HandleConnect(&cmd)
	case "releaseStream":
		return s.HandleReleaseStream(&cmd)
	case "FCPublish":
		s.SendInvokeMessage(0, RTMPCommand{cmd: "onFCPublish", arguments: make(map[string]*AMF0Value)})
		return true
	case "createStream":
		return s.HandleCreateStream(&cmd)
	case "publish":
		return s.HandlePublish(&cmd, packet)
	case "deleteStream":
		return s.HandleDeleteStream(&cmd)
	case "closeStream":
		return s.HandleCloseStream(&cmd, packet)
	}

	return true
}

// Handles a connect command
// cmd - The command
func (s *RTMPSession) HandleConnect(cmd *RTMPCommand) bool {
	s.channel = cmd.GetArg("cmdObj").GetProperty("app").GetString()

	if !s.server.validator.ValidateConnect(s.channel) {
		LogRequest(s.id, s.ip, "INVALID CHANNEL '"+s.channel+"'")
		return false
	}

	s.objectEncoding = uint32(cmd.GetArg("cmdObj").GetProperty("objectEncoding").GetInteger())
	s.connectTime = time.Now().UnixMilli()
	s.bitRateCache.intervalMs = 1000
	s.bitRateCache.last_update = s.connectTime
	s.bitRateCache.bytes = 0
	s.isConnected = true

	transId := cmd.GetArg("transId").GetInteger()

	LogRequest(s.id, s.ip, "CONNECT '"+s.channel+"'")

	s.SendWindowACK(5000000)
	s.SetPeerBandwidth(5000000, 2)
	s.SetChunkSize(s.outChunkSize)
	s.RespondConnect(transId, !cmd.GetArg("cmdObj").GetProperty("objectEncoding").IsUndefined())

	return true
}

// Handles a releaseStream command: best-effort key pre-validation ahead of
// the actual publish call, mirroring how OBS-style clients probe before
// sending FCPublish/publish. An accepted (or empty) key is answered with a
// _result carrying the request's transaction id.
func (s *RTMPSession) HandleReleaseStream(cmd *RTMPCommand) bool {
	streamName := cmd.GetArg("streamName").GetString()
	sKeyPathSplit := strings.Split(streamName, "?")
	key := sKeyPathSplit[0]

	if key != "" && !s.server.validator.ValidateReleaseStream(s.channel, key) {
		LogRequest(s.id, s.ip, "INVALID RELEASE STREAM KEY")
		return false
	}

	result := RTMPCommand{cmd: "_result", arguments: make(map[string]*AMF0Value)}
	result.arguments["transId"] = cmd.GetArg("transId")
	cmdObj := createAMF0Value(AMF0_TYPE_NULL)
	result.arguments["cmdObj"] = &cmdObj
	s.SendInvokeMessage(0, result)

	return true
}

// Handles a createStream command
// cmd - The command
func (s *RTMPSession) HandleCreateStream(cmd *RTMPCommand) bool {
	transId := cmd.GetArg("transId").GetInteger()
	s.RespondCreateStream(transId)

	return true
}

// Handles a publish command
// cmd - The command
// packet - The packet
func (s *RTMPSession) HandlePublish(cmd *RTMPCommand, packet *RTMPPacket) bool {
	sKeyPath := cmd.GetArg("streamName").GetString()
	sKeyPathSplit := strings.Split(sKeyPath, "?")
	s.key = sKeyPathSplit[0]

	if s.key == "" || !s.isConnected {
		return true
	}

	if !s.server.validator.ValidatePublish(s.channel, s.key, s.ip) {
		s.SendStatusMessage(s.publishStreamId, "error", "NetStream.Publish.BadName", "Invalid stream key provided")
		return false
	}

	s.publishStreamId = packet.header.stream_id

	if s.isPublishing {
		s.SendStatusMessage(s.publishStreamId, "error", "NetStream.Publish.BadConnection", "Connection already publishing")
		return true
	}

	if s.server.isPublishing(s.channel) {
		s.SendStatusMessage(s.publishStreamId, "error", "NetStream.Publish.BadName", "Stream already publishing")
		return false
	}

	LogRequest(s.id, s.ip, "PUBLISH ("+strconv.Itoa(int(s.publishStreamId))+") '"+s.channel+"'")

	if s.server.websocketControlConnection != nil {
		pubAccepted, streamId := s.server.websocketControlConnection.RequestPublish(s.channel, s.key, s.ip)
		if !pubAccepted {
			LogRequest(s.id, s.ip, "Error: Invalid streaming key provided")
			s.SendStatusMessage(s.publishStreamId, "error", "NetStream.Publish.BadName", "Invalid stream key provided")
			return false
		}
		s.stream_id = streamId
	} else if !s.SendStartCallback() {
		LogRequest(s.id, s.ip, "Error: Invalid streaming key provided")
		s.SendStatusMessage(s.publishStreamId, "error", "NetStream.Publish.BadName", "Invalid stream key provided")
		return false
	}

	if !s.server.SetPublisher(s.channel, s.key, s.stream_id, s) {
		s.SendStatusMessage(s.publishStreamId, "error", "NetStream.Publish.BadName", "Stream already publishing")
		return false
	}

	s.isPublishing = true

	s.SendStreamStatus(STREAM_BEGIN, 1)

	if s.server.newClientHandler != nil {
		s.handler = s.server.newClientHandler(s, s.channel, s.key)
	}
	if s.handler != nil {
		s.handler.HandleInit(s)
	}

	// PAUSE here: NetStream.Publish.Start is sent from GrantDemand, on the
	// first demand_data. If none arrives within clientTimeout, give up.
	s.publishTimeoutTimer = time.AfterFunc(s.server.clientTimeout, s.handlePublishTimeout)

	return true
}

// handlePublishTimeout fires clientTimeout after a successful Publish with
// no demand_data yet received, per the "Await demand" timeout.
func (s *RTMPSession) handlePublishTimeout() {
	s.mutex.Lock()
	expired := s.isPublishing && !s.publishStartSent
	s.mutex.Unlock()

	if expired {
		LogRequest(s.id, s.ip, "PUBLISH TIMEOUT: no demand_data received for '"+s.channel+"'")
		s.Kill()
	}
}

// GrantDemand implements the demand_data(n) message: grants n additional
// delivery credits (n < 0 switches to unbounded delivery), and on the first
// grant after a successful publish, completes the paused
// NetStream.Publish.Start response and cancels the await-demand timeout.
func (s *RTMPSession) GrantDemand(n int64) {
	if n < 0 {
		s.demand.Unbounded()
	} else {
		s.demand.Request(n)
	}

	s.mutex.Lock()
	firstGrant := s.isPublishing && !s.publishStartSent
	if firstGrant {
		s.publishStartSent = true
	}
	s.mutex.Unlock()

	if firstGrant {
		if s.publishTimeoutTimer != nil {
			s.publishTimeoutTimer.Stop()
		}
		s.SendStatusMessage(s.publishStreamId, "status", "NetStream.Publish.Start", s.GetStreamPath()+" is now published.")
	}
}

// Handles a deleteStream command
// cmd - The command
func (s *RTMPSession) HandleDeleteStream(cmd *RTMPCommand) bool {
	streamId := uint32(cmd.GetArg("streamId").GetInteger())

	if streamId == s.publishStreamId {
		LogDebugSession(s.id, s.ip, "Close publish stream")

		if s.isPublishing {
			s.EndPublish(false)
		}

		s.publishStreamId = 0
	}

	return true
}

// Ends publishing, optionally because the TCP connection already dropped
// (abrupt=true skips the status message, since there is no one to send it to).
func (s *RTMPSession) EndPublish(abrupt bool) {
	if !s.isPublishing {
		return
	}

	s.isPublishing = false
	s.publishStartSent = false
	s.flvHeaderSent = false
	if s.publishTimeoutTimer != nil {
		s.publishTimeoutTimer.Stop()
	}
	s.server.RemovePublisher(s.channel)

	if s.handler != nil {
		s.handler.HandleEndOfStream(s)
	}

	if s.server.websocketControlConnection != nil {
		s.server.websocketControlConnection.PublishEnd(s.channel, s.stream_id)
	} else {
		s.SendStopCallback()
	}

	if !abrupt {
		s.SendStatusMessage(s.publishStreamId, "status", "NetStream.Unpublish.Success", s.GetStreamPath()+" is now unpublished.")
	}
}

// Deletes a stream (called from OnClose, without a deleteStream command)
// streamId - ID of the stream
func (s *RTMPSession) DeleteStream(streamId uint32) {
	if streamId == s.publishStreamId {
		LogDebugSession(s.id, s.ip, "Close publish stream: "+strconv.Itoa(int(streamId)))

		if s.isPublishing {
			s.EndPublish(true)
		}

		s.publishStreamId = 0
	}
}

// Handles a closeStream command
// cmd - The command
// packet - The packet
func (s *RTMPSession) HandleCloseStream(cmd *RTMPCommand, packet *RTMPPacket) bool {
	streamId := createAMF0Value(AMF0_TYPE_NUMBER)
	streamId.SetIntegerVal(int64(packet.header.stream_id))
	cmd.arguments["streamId"] = &streamId
	return s.HandleDeleteStream(cmd)
}

// Handles an audio packet (contains audio data)
// packet - The packet
func (s *RTMPSession) HandleAudioPacket(packet *RTMPPacket) bool {
	s.publish_mutex.Lock()
	defer s.publish_mutex.Unlock()

	if !s.isPublishing {
		return true
	}

	sound_format := (packet.payload[0] >> 4) & 0x0f

	if s.audioCodec == 0 {
		s.audioCodec = uint32(sound_format)
	}

	if isAudioSequenceHeader(packet.payload) {
		s.aacSequenceHeader = packet.payload
	}

	if s.handler != nil && s.demand.Take() {
		s.handler.HandleDataAvailable(s, FlvTagAudio, s.flvFrame(packet), s.clock)
	}

	return true
}

// Handles a video packet (Contains video data)
// packet - The packet
func (s *RTMPSession) HandleVideoPacket(packet *RTMPPacket) bool {
	s.publish_mutex.Lock()
	defer s.publish_mutex.Unlock()

	if !s.isPublishing {
		return true
	}

	codec_id := packet.payload[0] & 0x0f

	if isVideoSequenceHeader(packet.payload) {
		s.avcSequenceHeader = packet.payload
	}

	if s.videoCodec == 0 {
		s.videoCodec = uint32(codec_id)
	}

	if s.handler != nil && s.demand.Take() {
		s.handler.HandleDataAvailable(s, FlvTagVideo, s.flvFrame(packet), s.clock)
	}

	return true
}

// flvFrame produces the bytes handed to the handler for one audio/video
// message: the 13-byte FLV file header prepended exactly once, ahead of
// the first tag, followed by packet's own FLV tag.
func (s *RTMPSession) flvFrame(packet *RTMPPacket) []byte {
	tag := createFlvTag(*packet)

	if !s.flvHeaderSent {
		s.flvHeaderSent = true
		return append(FlvHeader(true, true), tag...)
	}

	return tag
}

// Handles a data packet encoded with AMF0
// packet the packet
func (s *RTMPSession) HandleDataPacketAMF0(packet *RTMPPacket) bool {
	data := decodeRTMPData(packet.payload)
	return s.HandleRTMPData(packet, &data)
}

// Handles a data packet encoded with AMF3
// packet the packet
func (s *RTMPSession) HandleDataPacketAMF3(packet *RTMPPacket) bool {
	data := decodeRTMPData(packet.payload[1:])
	return s.HandleRTMPData(packet, &data)
}

// Handles a data packet
// packet - The packet
// data - The decoded data message
func (s *RTMPSession) HandleRTMPData(packet *RTMPPacket, data *RTMPData) bool {
	LogDebugSession(s.id, s.ip, "Received data: "+data.ToString())
	switch data.tag {
	case "@setDataFrame":
		dataObj := data.GetArg("dataObj")
		if !s.server.validator.ValidateSetDataFrame(s.channel, dataObj.GetObject()) {
			return true
		}
		metaData := s.BuildMetadata(data)
		s.SetMetaData(metaData)
		if s.handler != nil {
			s.handler.HandleInfo(s, dataObj.GetObject())
		}
	}

	return true
}

// Stores the latest onMetaData blob for the session. The blob is only kept
// here; it is not re-sent to the client or handed to the handler.
func (s *RTMPSession) SetMetaData(metaData []byte) {
	s.metaData = metaData
}

// Call after the TCP connection is closed
func (s *RTMPSession) OnClose() {
	if s.publishStreamId > 0 {
		s.DeleteStream(s.publishStreamId)
	}

	s.isConnected = false
}
