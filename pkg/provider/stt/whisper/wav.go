package whisper

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// wavClip holds decoded 16-bit PCM audio from a RIFF/WAVE container.
type wavClip struct {
	sampleRate int
	channels   int
	pcm        []byte
}

// decodeWAV parses a RIFF/WAVE container and returns its PCM payload.
// Only format 1 (uncompressed PCM) with 16-bit samples is accepted.
func decodeWAV(data []byte) (*wavClip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE file")
	}

	var (
		clip      wavClip
		haveFmt   bool
		bitsPer   int
		audioKind int
	)

	// Walk the chunk list. Chunks are 2-byte aligned.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("fmt chunk too short")
			}
			audioKind = int(binary.LittleEndian.Uint16(data[body : body+2]))
			clip.channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			clip.sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPer = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			clip.pcm = data[body : body+size]
		}

		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return nil, errors.New("missing fmt chunk")
	}
	if clip.pcm == nil {
		return nil, errors.New("missing data chunk")
	}
	if audioKind != 1 {
		return nil, fmt.Errorf("unsupported audio format %d (only uncompressed PCM)", audioKind)
	}
	if bitsPer != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d (only 16-bit)", bitsPer)
	}
	if clip.channels <= 0 || clip.sampleRate <= 0 {
		return nil, fmt.Errorf("invalid fmt chunk: channels=%d sample_rate=%d", clip.channels, clip.sampleRate)
	}

	return &clip, nil
}

// monoFloat32 converts the clip's 16-bit signed little-endian PCM to mono
// float32 samples normalised to [-1.0, 1.0], averaging all channels per
// frame. Any trailing partial frame is silently ignored.
func (c *wavClip) monoFloat32() []float32 {
	frames := len(c.pcm) / (2 * c.channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range c.channels {
			idx := (i*c.channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(c.pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(c.channels)
	}
	return mono
}

// resample converts samples from rate from to rate to using linear
// interpolation. Good enough for speech fed to whisper; spelling clips are a
// few seconds long so quality loss is negligible.
func resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 {
		return samples
	}
	outLen := int(int64(len(samples)) * int64(to) / int64(from))
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}
