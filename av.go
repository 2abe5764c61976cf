// Audio and video codec classification
//
// Only enough to label a stream and recognize a sequence header. Parsing the
// SPS/PPS/ADTS bitstreams themselves is out of scope here; callers that need
// width/height/profile information receive it from elsewhere (the outbound
// sink contract takes it as a parameter instead of decoding it).

package main

var AUDIO_CODEC_NAME = []string{
	"",
	"ADPCM",
	"MP3",
	"LinearLE",
	"Nellymoser16",
	"Nellymoser8",
	"Nellymoser",
	"G711A",
	"G711U",
	"",
	"AAC",
	"Speex",
	"",
	"OPUS",
	"MP3-8K",
	"DeviceSpecific",
	"Uncompressed",
}

var VIDEO_CODEC_NAME = []string{
	"",
	"Jpeg",
	"Sorenson-H263",
	"ScreenVideo",
	"On2-VP6",
	"On2-VP6-Alpha",
	"ScreenVideo2",
	"H264",
	"",
	"",
	"",
	"",
	"H265",
}

const AUDIO_CODEC_AAC = 10
const AUDIO_CODEC_OPUS = 13

const VIDEO_CODEC_AVC = 7
const VIDEO_CODEC_HEVC = 12

// Tells whether an audio tag's first two bytes mark it as a sequence header
// rather than a regular frame (AAC/Opus only; format byte 0 = header).
func isAudioSequenceHeader(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	soundFormat := (payload[0] >> 4) & 0x0f
	return (soundFormat == AUDIO_CODEC_AAC || soundFormat == AUDIO_CODEC_OPUS) && payload[1] == 0
}

// Tells whether a video tag's first two bytes mark it as a sequence header
// (AVC/HEVC key frame with packet type 0).
func isVideoSequenceHeader(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	frameType := (payload[0] >> 4) & 0x0f
	codecId := payload[0] & 0x0f
	return (codecId == VIDEO_CODEC_AVC || codecId == VIDEO_CODEC_HEVC) && frameType == 1 && payload[1] == 0
}
