package aio

import (
	"encoding/binary"
	"fmt"

	"github.com/go-audio/audio"
)

// PcmFormatToBits returns the number of bits per sample for a given format.
// This reflects the space occupied in memory, so 24-bit formats in 32-bit containers return 32.
func PcmFormatToBits(f PcmFormat) uint32 {
	switch f {
	case SNDRV_PCM_FORMAT_S32_LE, SNDRV_PCM_FORMAT_S24_LE:
		return 32
	case SNDRV_PCM_FORMAT_S24_3LE:
		return 24
	case SNDRV_PCM_FORMAT_S16_LE:
		return 16
	default:
		return 0
	}
}

// PcmFormatWidth returns the number of significant bits of a format.
func PcmFormatWidth(f PcmFormat) uint32 {
	switch f {
	case SNDRV_PCM_FORMAT_S32_LE:
		return 32
	case SNDRV_PCM_FORMAT_S24_LE, SNDRV_PCM_FORMAT_S24_3LE:
		return 24
	case SNDRV_PCM_FORMAT_S16_LE:
		return 16
	default:
		return 0
	}
}

// PcmFormatPhysicalBytes returns the number of bytes one sample occupies.
func PcmFormatPhysicalBytes(f PcmFormat) uint32 {
	return PcmFormatToBits(f) / 8
}

// FrameBytes returns the size of a single frame in bytes.
func FrameBytes(f PcmFormat, channels uint32) uint32 {
	return PcmFormatPhysicalBytes(f) * channels
}

// FramesToBytes converts a number of frames to the corresponding number of bytes.
func FramesToBytes(f PcmFormat, channels, frames uint32) uint32 {
	return frames * FrameBytes(f, channels)
}

// BytesToFrames converts a number of bytes to the corresponding number of frames.
func BytesToFrames(f PcmFormat, channels, bytes uint32) uint32 {
	frameSize := FrameBytes(f, channels)
	if frameSize == 0 {
		return 0
	}

	return bytes / frameSize
}

// ReadSample reads one sample at the start of buf and returns it left-justified in 32 bits.
func ReadSample(buf []byte, f PcmFormat) int32 {
	switch f {
	case SNDRV_PCM_FORMAT_S16_LE:
		return int32(binary.LittleEndian.Uint16(buf)) << 16
	case SNDRV_PCM_FORMAT_S24_LE:
		// 24 bits of data in the low bytes of a 32-bit container.
		return int32(binary.LittleEndian.Uint32(buf) << 8)
	case SNDRV_PCM_FORMAT_S24_3LE:
		return int32(uint32(buf[0])<<8 | uint32(buf[1])<<16 | uint32(buf[2])<<24)
	case SNDRV_PCM_FORMAT_S32_LE:
		return int32(binary.LittleEndian.Uint32(buf))
	default:
		return 0
	}
}

// WriteSample narrows a left-justified 32-bit sample into buf in the given format.
func WriteSample(buf []byte, f PcmFormat, v int32) {
	switch f {
	case SNDRV_PCM_FORMAT_S16_LE:
		binary.LittleEndian.PutUint16(buf, uint16(uint32(v)>>16))
	case SNDRV_PCM_FORMAT_S24_LE:
		// Sign-extended into the unused top byte.
		binary.LittleEndian.PutUint32(buf, uint32(v>>8))
	case SNDRV_PCM_FORMAT_S24_3LE:
		u := uint32(v)
		buf[0] = byte(u >> 8)
		buf[1] = byte(u >> 16)
		buf[2] = byte(u >> 24)
	case SNDRV_PCM_FORMAT_S32_LE:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	}
}

// PeriodToIntBuffer converts raw PCM bytes into an audio.IntBuffer that go-audio encoders understand.
func PeriodToIntBuffer(data []byte, f PcmFormat, channels, rate int) (*audio.IntBuffer, error) {
	bytesPerSample := int(PcmFormatPhysicalBytes(f))
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("unsupported format for conversion: %v: %w", f, ErrUnsupportedFormat)
	}

	width := int(PcmFormatWidth(f))
	numSamples := len(data) / bytesPerSample
	intData := make([]int, numSamples)

	for i := 0; i < numSamples; i++ {
		intData[i] = int(ReadSample(data[i*bytesPerSample:], f) >> (32 - width))
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  rate,
		},
		Data:           intData,
		SourceBitDepth: width,
	}, nil
}

// IntBufferToBytes packs an audio.IntBuffer into raw PCM bytes of the given format.
// Samples are rescaled from the buffer's source bit depth.
func IntBufferToBytes(buf *audio.IntBuffer, f PcmFormat) ([]byte, error) {
	bytesPerSample := int(PcmFormatPhysicalBytes(f))
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("unsupported format for conversion: %v: %w", f, ErrUnsupportedFormat)
	}

	depth := buf.SourceBitDepth
	if depth <= 0 || depth > 32 {
		depth = 16
	}

	out := make([]byte, len(buf.Data)*bytesPerSample)
	for i, s := range buf.Data {
		WriteSample(out[i*bytesPerSample:], f, int32(uint32(s)<<(32-depth)))
	}

	return out, nil
}
