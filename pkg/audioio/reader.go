package audioio

import "encoding/binary"

// Reader adapts Output to the io.Reader contract most Go audio backends
// expect: a stream of little-endian 16-bit mono PCM.
type Reader struct {
	output *Output
	scratch []float64
}

// NewReader creates a Reader over output with an internal scratch buffer
// of bufferFrames samples.
func NewReader(output *Output, bufferFrames int) *Reader {
	if bufferFrames <= 0 {
		bufferFrames = 512
	}
	return &Reader{output: output, scratch: make([]float64, bufferFrames)}
}

// Read implements io.Reader, rendering and converting samples on demand.
func (r *Reader) Read(p []byte) (int, error) {
	frames := len(p) / 2
	if frames == 0 {
		return 0, nil
	}
	if frames > len(r.scratch) {
		r.scratch = make([]float64, frames)
	}
	buf := r.scratch[:frames]
	r.output.RenderFloat64(buf)

	for i, s := range buf {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(p[i*2:], uint16(int16(s*32767)))
	}
	return frames * 2, nil
}
