// Package clips cuts per-utterance audio clips from a daylong recording and
// attaches a pitch summary obtained from an external estimator.
package clips

import (
	"encoding/binary"
	"fmt"
)

// WAV is a decoded PCM wave file. Only uncompressed PCM is supported; that is
// the only format the recorders produce.
type WAV struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	data          []byte
}

// frameSize returns bytes per sample frame across all channels.
func (w *WAV) frameSize() int {
	return int(w.Channels) * int(w.BitsPerSample) / 8
}

// DurationSeconds returns the audio length.
func (w *WAV) DurationSeconds() float64 {
	return float64(len(w.data)/w.frameSize()) / float64(w.SampleRate)
}

// DecodeWAV parses a RIFF/WAVE byte slice.
func DecodeWAV(b []byte) (*WAV, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("clips: not a RIFF/WAVE file")
	}

	w := &WAV{}
	var haveFmt, haveData bool

	// Walk the chunk list; fmt and data are the only chunks we need.
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			return nil, fmt.Errorf("clips: chunk %q overruns file", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("clips: fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("clips: unsupported audio format %d (PCM only)", format)
			}
			w.Channels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			w.SampleRate = binary.LittleEndian.Uint32(b[body+4 : body+8])
			w.BitsPerSample = binary.LittleEndian.Uint16(b[body+14 : body+16])
			haveFmt = true
		case "data":
			w.data = b[body : body+size]
			haveData = true
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || !haveData {
		return nil, fmt.Errorf("clips: missing fmt or data chunk")
	}
	if w.Channels == 0 || w.SampleRate == 0 || w.BitsPerSample == 0 {
		return nil, fmt.Errorf("clips: degenerate format (channels=%d rate=%d bits=%d)",
			w.Channels, w.SampleRate, w.BitsPerSample)
	}
	return w, nil
}

// Cut returns a standalone WAV holding the sample range [start, stop)
// seconds. The copy is lossless: raw frames are sliced on frame boundaries,
// so the clip duration matches stop-start within one frame.
func (w *WAV) Cut(start, stop float64) ([]byte, error) {
	if start < 0 || stop <= start {
		return nil, fmt.Errorf("clips: invalid range (%v, %v)", start, stop)
	}

	frame := w.frameSize()
	totalFrames := len(w.data) / frame

	startFrame := int(start * float64(w.SampleRate))
	stopFrame := int(stop * float64(w.SampleRate))
	if stopFrame > totalFrames {
		stopFrame = totalFrames
	}
	if startFrame >= stopFrame {
		return nil, fmt.Errorf("clips: range (%v, %v) is past the end of the recording", start, stop)
	}

	pcm := w.data[startFrame*frame : stopFrame*frame]
	return encodeWAV(pcm, w.SampleRate, w.Channels, w.BitsPerSample), nil
}

// encodeWAV frames raw PCM bytes as a minimal RIFF/WAVE file.
func encodeWAV(pcm []byte, sampleRate uint32, channels, bits uint16) []byte {
	blockAlign := channels * bits / 8
	byteRate := sampleRate * uint32(blockAlign)

	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], byteRate)
	binary.LittleEndian.PutUint16(buf[32:34], blockAlign)
	binary.LittleEndian.PutUint16(buf[34:36], bits)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}
