package audioio

import (
	"encoding/binary"
	"io"
)

// wavWriter writes 16-bit mono PCM to the canonical RIFF/WAVE container,
// adapted from the teacher's audio.WAVWriter.
type wavWriter struct {
	w          io.Writer
	sampleRate int
}

func (w *wavWriter) writeHeader(dataSize int) error {
	if _, err := w.w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, uint32(dataSize+36)); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte("WAVE")); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte("fmt ")); err != nil {
		return err
	}
	fields := []any{
		uint32(16), // fmt chunk size
		uint16(1),  // PCM
		uint16(1),  // mono
		uint32(w.sampleRate),
		uint32(w.sampleRate * 2), // byte rate
		uint16(2),                // block align
		uint16(16),               // bits per sample
	}
	for _, f := range fields {
		if err := binary.Write(w.w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	if _, err := w.w.Write([]byte("data")); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, uint32(dataSize))
}

func (w *wavWriter) writeSamples(samples []float64) error {
	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		if err := binary.Write(w.w, binary.LittleEndian, int16(s*32767)); err != nil {
			return err
		}
	}
	return nil
}

// BounceToWAV renders durationSeconds of output's click stream to w as a
// 16-bit mono WAV file. Unlike the real-time path, there is no device
// clock to wait on, so rendering proceeds as fast as the caller reads —
// this is an offline bounce of the click bus, not a capture of the
// microphone input (see spec.md §6.3 for why this does not conflict with
// the "no recording/export" Non-goal).
func BounceToWAV(w io.Writer, output *Output, durationSeconds float64) error {
	totalFrames := int(durationSeconds * float64(output.SampleRate))
	ww := &wavWriter{w: w, sampleRate: output.SampleRate}
	if err := ww.writeHeader(totalFrames * 2); err != nil {
		return err
	}

	const chunk = 4096
	buf := make([]float64, chunk)
	for written := 0; written < totalFrames; {
		remaining := totalFrames - written
		n := chunk
		if remaining < n {
			n = remaining
		}
		output.RenderFloat64(buf[:n])
		if err := ww.writeSamples(buf[:n]); err != nil {
			return err
		}
		written += n
	}
	return nil
}
