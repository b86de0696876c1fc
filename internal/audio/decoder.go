package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrNotWav = errors.New("audio is not a RIFF/WAVE file")

// WavInfo describes the format chunk of a decoded WAV file.
type WavInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DecodeWav extracts 16 bit PCM from a WAV file, mixing down to mono.
func DecodeWav(data []byte) (WavInfo, []int16, error) {
	var info WavInfo

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return info, nil, ErrNotWav
	}

	var pcm []byte
	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return info, nil, fmt.Errorf("failed to decode wav: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return info, nil, fmt.Errorf("failed to decode wav: unsupported format %d", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}

		// chunks are word aligned
		pos = body + size + size%2
	}

	if !haveFmt {
		return info, nil, fmt.Errorf("failed to decode wav: missing fmt chunk")
	}
	if info.BitsPerSample != wavBitsPerSample {
		return info, nil, fmt.Errorf("failed to decode wav: unsupported bit depth %d", info.BitsPerSample)
	}
	if info.Channels < 1 {
		return info, nil, fmt.Errorf("failed to decode wav: invalid channel count %d", info.Channels)
	}

	interleaved := BytesToPCM16(pcm)
	if info.Channels == 1 {
		return info, interleaved, nil
	}

	frames := len(interleaved) / info.Channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < info.Channels; c++ {
			sum += int(interleaved[i*info.Channels+c])
		}
		mono[i] = int16(sum / info.Channels)
	}
	return info, mono, nil
}
