package audio

// FrameChunker regroups captured sample buffers of arbitrary length into
// fixed-size frames so every outbound chunk covers the same duration.
type FrameChunker struct {
	frameSamples int
	buffer       []float32
}

func NewFrameChunker(frameMS, sampleRate int) *FrameChunker {
	frameSamples := frameMS * sampleRate / 1000
	if frameSamples <= 0 {
		frameSamples = 1
	}
	return &FrameChunker{
		frameSamples: frameSamples,
		buffer:       make([]float32, 0, frameSamples*2),
	}
}

// AddSamples appends samples and returns every frame that became complete.
func (c *FrameChunker) AddSamples(samples []float32) [][]float32 {
	c.buffer = append(c.buffer, samples...)

	var frames [][]float32
	for len(c.buffer) >= c.frameSamples {
		frame := make([]float32, c.frameSamples)
		copy(frame, c.buffer[:c.frameSamples])
		frames = append(frames, frame)

		// Move remaining samples to beginning
		n := copy(c.buffer, c.buffer[c.frameSamples:])
		c.buffer = c.buffer[:n]
	}
	return frames
}

// Flush returns any buffered partial frame and resets the chunker.
func (c *FrameChunker) Flush() []float32 {
	if len(c.buffer) == 0 {
		return nil
	}
	rest := make([]float32, len(c.buffer))
	copy(rest, c.buffer)
	c.buffer = c.buffer[:0]
	return rest
}
