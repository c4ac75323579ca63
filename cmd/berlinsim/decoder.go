package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// source abstracts the decoders feeding a playback stream.
type source interface {
	// PCMBuffer reads decoded samples, not frames, into buf.
	PCMBuffer(buf *audio.IntBuffer) (n int, err error)
	NumChans() int
	SampleRate() int
	BitDepth() int
}

// openSource picks a decoder by file extension. Anything that is neither WAV nor MP3 is
// read as raw 16-bit little-endian stereo, the layout of an IEC61937 capture.
func openSource(path string, rawRate int) (source, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening audio file: %w", err)
	}

	var src source

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		src, err = newWavSource(f)
	case ".mp3":
		src, err = newMp3Source(f)
	default:
		src = &rawSource{r: f, rate: rawRate}
	}

	if err != nil {
		f.Close()

		return nil, nil, err
	}

	return src, f, nil
}

type wavSource struct {
	*wav.Decoder
}

func newWavSource(r io.ReadSeeker) (source, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported WAV audio format %d, integer PCM only", decoder.WavAudioFormat)
	}

	return &wavSource{Decoder: decoder}, nil
}

func (w *wavSource) NumChans() int   { return int(w.Decoder.NumChans) }
func (w *wavSource) SampleRate() int { return int(w.Decoder.SampleRate) }
func (w *wavSource) BitDepth() int   { return int(w.Decoder.BitDepth) }

// pcm16Reader turns a stream of 16-bit little-endian samples into integers.
type pcm16Reader struct {
	r   io.Reader
	raw []byte
}

func (p *pcm16Reader) read(buf *audio.IntBuffer) (int, error) {
	if need := len(buf.Data) * 2; cap(p.raw) < need {
		p.raw = make([]byte, need)
	}

	raw := p.raw[:len(buf.Data)*2]

	n, err := io.ReadFull(p.r, raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	if samples > 0 && errors.Is(err, io.EOF) {
		err = nil
	}

	return samples, err
}

// mp3Source always decodes to 16-bit stereo.
type mp3Source struct {
	decoder *mp3.Decoder
	pcm     pcm16Reader
}

func newMp3Source(r io.Reader) (source, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	return &mp3Source{decoder: decoder, pcm: pcm16Reader{r: decoder}}, nil
}

func (m *mp3Source) PCMBuffer(buf *audio.IntBuffer) (int, error) { return m.pcm.read(buf) }
func (m *mp3Source) NumChans() int                               { return 2 }
func (m *mp3Source) SampleRate() int                             { return m.decoder.SampleRate() }
func (m *mp3Source) BitDepth() int                               { return 16 }

// rawSource reads headerless 16-bit stereo.
type rawSource struct {
	r    io.Reader
	rate int
	pcm  pcm16Reader
}

func (s *rawSource) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	if s.pcm.r == nil {
		s.pcm.r = s.r
	}

	return s.pcm.read(buf)
}

func (s *rawSource) NumChans() int   { return 2 }
func (s *rawSource) SampleRate() int { return s.rate }
func (s *rawSource) BitDepth() int   { return 16 }
