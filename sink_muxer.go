// Outbound sink demand/backoff interleaving
//
// The native muxer on the far side of the FFI boundary is an opaque
// component; this file implements only the bootstrap rule in front of it:
// the first frame from either pad is written immediately; a further frame
// from a pad that has already emitted, arriving before the other pad has
// produced anything, is held as bufferedFrame (one slot; a newer frame
// replaces it) and written right after the sibling pad's first frame. Once
// both pads have emitted, every frame is written as soon as it is
// submitted; frames are not reordered or held by timestamp.

package main

import "sync"

// NativeMuxer is the opaque consumer on the other side of the FFI boundary;
// this repo only names its contract, per spec. OutboundPublishClient
// satisfies it for the RTMP-relay case.
type NativeMuxer interface {
	WriteAudio(timestamp int64, payload []byte) error
	WriteVideo(timestamp int64, payload []byte) error
}

type muxerPad struct {
	lastTimestamp int64
	hasEmitted    bool
	bufferedFrame []byte
	bufferedTs    int64
}

// OutboundSink feeds a NativeMuxer, holding back a pad's early frames until
// the other pad has emitted once (see the bootstrap rule above).
type OutboundSink struct {
	mutex sync.Mutex
	muxer NativeMuxer
	audio muxerPad
	video muxerPad
}

// NewOutboundSink wraps muxer with the bootstrap/buffer rule described above.
func NewOutboundSink(muxer NativeMuxer) *OutboundSink {
	return &OutboundSink{muxer: muxer}
}

// SubmitAudio offers an audio frame to the sink. It is written immediately
// unless audio has already emitted and video has not, in which case it
// replaces the held audio frame until video emits.
func (s *OutboundSink) SubmitAudio(timestamp int64, payload []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.shouldEmit(&s.audio, &s.video, timestamp) {
		s.audio.bufferedFrame = payload
		s.audio.bufferedTs = timestamp
		return nil
	}

	return s.emitAudio(timestamp, payload)
}

// SubmitVideo offers a video frame to the sink, mirroring SubmitAudio.
func (s *OutboundSink) SubmitVideo(timestamp int64, payload []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.shouldEmit(&s.video, &s.audio, timestamp) {
		s.video.bufferedFrame = payload
		s.video.bufferedTs = timestamp
		return nil
	}

	return s.emitVideo(timestamp, payload)
}

// shouldEmit reports whether the pad with candidate timestamp ts should be
// written now, versus held until the sibling pad has initialized.
func (s *OutboundSink) shouldEmit(self *muxerPad, sibling *muxerPad, ts int64) bool {
	if !sibling.hasEmitted && self.hasEmitted {
		return false // Wait for the sibling pad's first frame before racing ahead
	}
	if sibling.hasEmitted && ts > sibling.lastTimestamp {
		return true
	}
	return !self.hasEmitted || ts <= sibling.lastTimestamp
}

func (s *OutboundSink) emitAudio(ts int64, payload []byte) error {
	if err := s.muxer.WriteAudio(ts, payload); err != nil {
		return err
	}
	s.audio.lastTimestamp = ts
	s.audio.hasEmitted = true
	return s.drainBuffered(&s.video, s.emitVideoRaw)
}

func (s *OutboundSink) emitVideo(ts int64, payload []byte) error {
	if err := s.muxer.WriteVideo(ts, payload); err != nil {
		return err
	}
	s.video.lastTimestamp = ts
	s.video.hasEmitted = true
	return s.drainBuffered(&s.audio, s.emitAudioRaw)
}

func (s *OutboundSink) emitAudioRaw(ts int64, payload []byte) error {
	if err := s.muxer.WriteAudio(ts, payload); err != nil {
		return err
	}
	s.audio.lastTimestamp = ts
	s.audio.hasEmitted = true
	return nil
}

func (s *OutboundSink) emitVideoRaw(ts int64, payload []byte) error {
	if err := s.muxer.WriteVideo(ts, payload); err != nil {
		return err
	}
	s.video.lastTimestamp = ts
	s.video.hasEmitted = true
	return nil
}

func (s *OutboundSink) drainBuffered(pad *muxerPad, emit func(int64, []byte) error) error {
	if pad.bufferedFrame == nil {
		return nil
	}
	ts := pad.bufferedTs
	payload := pad.bufferedFrame
	pad.bufferedFrame = nil
	return emit(ts, payload)
}
