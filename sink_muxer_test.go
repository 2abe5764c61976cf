package main

import "testing"

type recordingMuxer struct {
	calls []string
}

func (m *recordingMuxer) WriteAudio(timestamp int64, payload []byte) error {
	m.calls = append(m.calls, "audio")
	return nil
}

func (m *recordingMuxer) WriteVideo(timestamp int64, payload []byte) error {
	m.calls = append(m.calls, "video")
	return nil
}

// The very first frame from either pad has no sibling history to wait on,
// so it is forwarded immediately.
func TestOutboundSinkBootstrapsOnFirstFrame(t *testing.T) {
	muxer := &recordingMuxer{}
	sink := NewOutboundSink(muxer)

	if err := sink.SubmitAudio(0, []byte{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(muxer.calls) != 1 || muxer.calls[0] != "audio" {
		t.Fatalf("expected the first audio frame to emit immediately, got %v", muxer.calls)
	}
}

// A second frame from a pad that has already emitted once, submitted before
// its sibling has emitted anything, is held back rather than racing ahead --
// it is drained as soon as the sibling produces its own first frame.
func TestOutboundSinkBuffersSecondFrameUntilSiblingCatchesUp(t *testing.T) {
	muxer := &recordingMuxer{}
	sink := NewOutboundSink(muxer)

	sink.SubmitAudio(0, []byte{1}) // bootstraps, emits immediately
	muxer.calls = nil

	if err := sink.SubmitAudio(5, []byte{2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(muxer.calls) != 0 {
		t.Fatalf("expected the second audio frame to be buffered, got %v", muxer.calls)
	}

	if err := sink.SubmitVideo(0, []byte{3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(muxer.calls) != 2 || muxer.calls[0] != "video" || muxer.calls[1] != "audio" {
		t.Fatalf("expected video's first frame followed by the drained audio buffer, got %v", muxer.calls)
	}
}

// Once both pads have emitted, frames behind the sibling's last timestamp
// are forwarded immediately rather than buffered.
func TestOutboundSinkInterleavesBySmallestTimestamp(t *testing.T) {
	muxer := &recordingMuxer{}
	sink := NewOutboundSink(muxer)

	sink.SubmitAudio(0, []byte{1})
	sink.SubmitVideo(0, []byte{2})
	muxer.calls = nil

	if err := sink.SubmitAudio(10, []byte{3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(muxer.calls) != 1 || muxer.calls[0] != "audio" {
		t.Fatalf("expected an audio frame at or behind video's last timestamp to emit immediately, got %v", muxer.calls)
	}

	if err := sink.SubmitVideo(5, []byte{4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(muxer.calls) != 2 || muxer.calls[1] != "video" {
		t.Fatalf("expected the next video frame to emit once submitted, got %v", muxer.calls)
	}
}

func TestOutboundSinkPropagatesMuxerError(t *testing.T) {
	errMuxer := &erroringMuxer{}
	sink := NewOutboundSink(errMuxer)

	if err := sink.SubmitVideo(0, []byte{1}); err == nil {
		t.Fatalf("expected the muxer's error to propagate")
	}
}

type erroringMuxer struct{}

func (m *erroringMuxer) WriteAudio(timestamp int64, payload []byte) error {
	return errTestMuxer
}

func (m *erroringMuxer) WriteVideo(timestamp int64, payload []byte) error {
	return errTestMuxer
}

var errTestMuxer = &muxerTestError{"muxer failure"}

type muxerTestError struct{ msg string }

func (e *muxerTestError) Error() string { return e.msg }
