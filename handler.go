// Client handler actor
//
// A publish session hands its decoded audio/video/metadata to a pluggable
// ClientHandler instead of re-broadcasting to other RTMP clients. Delivery
// is gated by a DemandCounter: a frame that arrives while the handler has no
// outstanding credit is dropped, not buffered, and reading from the
// publisher's socket is not paused while credit is zero.

package main

import "strconv"

// ClientHandler receives the FLV-shaped output of a single publish session.
// Implementations are expected to be non-blocking or to apply their own
// internal queueing; HandleDataAvailable is only called when demand allows it.
type ClientHandler interface {
	// HandleInit is called once, right after the session starts publishing.
	HandleInit(s *RTMPSession)

	// HandleDataAvailable is called for every audio/video tag the session
	// receives, once the handler has requested at least one more buffer via
	// the session's DemandCounter. tagType is FlvTagAudio or FlvTagVideo.
	HandleDataAvailable(s *RTMPSession, tagType byte, payload []byte, timestamp int64)

	// HandleInfo is called when the client sends an onMetaData / @setDataFrame
	// message, carrying the decoded AMF0 object properties.
	HandleInfo(s *RTMPSession, metaData map[string]*AMF0Value)

	// HandleEndOfStream is called once publishing ends, whether by a clean
	// deleteStream/closeStream or by the connection dropping.
	HandleEndOfStream(s *RTMPSession)
}

// ClientHandlerFactory is the handle_new_client(actor_ref, app, stream_key)
// callback: given a freshly-publishing session, it returns the handler
// module that session's FLV events are delivered to. Returning nil disables
// delivery for that session.
type ClientHandlerFactory func(s *RTMPSession, app string, streamKey string) ClientHandler

// DefaultClientHandlerFactory is used when no owner-supplied factory is
// configured: it attaches a logClientHandler that grants unbounded demand
// immediately, so a freshly-deployed server surfaces publish events in its
// own log instead of silently pausing every publish forever.
func DefaultClientHandlerFactory(s *RTMPSession, app string, streamKey string) ClientHandler {
	return &logClientHandler{app: app, streamKey: streamKey}
}

// logClientHandler is the no-consumer-configured fallback: it logs what it
// receives and never throttles the publisher.
type logClientHandler struct {
	app       string
	streamKey string
}

func (h *logClientHandler) HandleInit(s *RTMPSession) {
	LogDebugSession(s.id, s.ip, "C5: handler attached for "+h.app+"/"+h.streamKey)
	s.GrantDemand(-1) // Unbounded: nothing downstream to apply backpressure on its behalf
}

func (h *logClientHandler) HandleDataAvailable(s *RTMPSession, tagType byte, payload []byte, timestamp int64) {
	LogDebugSession(s.id, s.ip, "C5: received FLV tag, type="+strconv.Itoa(int(tagType))+" bytes="+strconv.Itoa(len(payload)))
}

func (h *logClientHandler) HandleInfo(s *RTMPSession, metaData map[string]*AMF0Value) {
	LogDebugSession(s.id, s.ip, "C5: received metadata, "+strconv.Itoa(len(metaData))+" properties")
}

func (h *logClientHandler) HandleEndOfStream(s *RTMPSession) {
	LogDebugSession(s.id, s.ip, "C5: end of stream for "+h.app+"/"+h.streamKey)
}

// DemandCounter implements a simple credit-based backpressure scheme: a
// consumer grants credits by calling Request, and the producer consumes one
// credit per delivered buffer by calling Take.
type DemandCounter struct {
	mutex   *chanMutex
	credits int64
}

// chanMutex is a 1-buffered channel used as a mutex (lock blocks until the
// token is returned), avoiding a dependency on sync for this single counter.
type chanMutex chan struct{}

func newChanMutex() *chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return &m
}

func (m *chanMutex) lock() {
	<-*m
}

func (m *chanMutex) unlock() {
	*m <- struct{}{}
}

// NewDemandCounter creates a counter with zero outstanding credits: no
// buffers are delivered until Request is called.
func NewDemandCounter() *DemandCounter {
	return &DemandCounter{
		mutex:   newChanMutex(),
		credits: 0,
	}
}

// Request grants n additional credits to the producer side.
func (d *DemandCounter) Request(n int64) {
	d.mutex.lock()
	defer d.mutex.unlock()

	d.credits += n
}

// Take consumes one credit if available, returning whether a buffer may be
// delivered. Called by the publish session before invoking HandleDataAvailable.
func (d *DemandCounter) Take() bool {
	d.mutex.lock()
	defer d.mutex.unlock()

	if d.credits < 0 {
		return true // Unbounded mode
	}

	if d.credits == 0 {
		return false
	}

	d.credits--
	return true
}

// Unbounded switches the counter to always-allow mode, used by handlers that
// do their own internal buffering and never want the publisher paused.
func (d *DemandCounter) Unbounded() {
	d.mutex.lock()
	defer d.mutex.unlock()

	d.credits = -1
}
