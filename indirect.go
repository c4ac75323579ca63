package aio

// pcmIndirect mediates between the ALSA ring (sw side, advanced by the application pointer)
// and the hardware buffers (hw side, advanced by DMA completions). Both sides count bytes of
// ALSA data, sinks scale hw positions by their own expansion.
type pcmIndirect struct {
	hwBufferSize int
	hwQueueSize  int
	hwData       int // next hw position to fill
	hwIO         int // last reported hw position
	hwReady      int // bytes filled but not consumed
	swBufferSize int
	swData       int // next sw position to transfer
	swIO         int // position reported to ALSA
	swReady      int // bytes written by the application but not transferred
	applPtr      uint64
}

func (r *pcmIndirect) reset(bufferBytes int) {
	*r = pcmIndirect{
		hwBufferSize: bufferBytes,
		hwQueueSize:  bufferBytes,
		swBufferSize: bufferBytes,
	}
}

// transfer moves newly written application data towards the hardware side.
// copyFn receives the sw offset, the hw offset and the length of each contiguous chunk.
func (r *pcmIndirect) transfer(applPtr uint64, copyFn func(swOff, hwOff, n int)) {
	if diff := int(applPtr - r.applPtr); diff > 0 {
		r.swReady += diff
		r.applPtr = applPtr
	}

	for r.hwReady < r.hwQueueSize && r.swReady > 0 {
		n := r.hwQueueSize - r.hwReady
		if n > r.swReady {
			n = r.swReady
		}

		if toEnd := r.hwBufferSize - r.hwData; n > toEnd {
			n = toEnd
		}

		if toEnd := r.swBufferSize - r.swData; n > toEnd {
			n = toEnd
		}

		if n <= 0 {
			break
		}

		copyFn(r.swData, r.hwData, n)

		r.hwData = (r.hwData + n) % r.hwBufferSize
		r.swData = (r.swData + n) % r.swBufferSize
		r.hwReady += n
		r.swReady -= n
	}
}

// pointer accounts hardware consumption up to hwPtr and returns the sw position in bytes.
func (r *pcmIndirect) pointer(hwPtr int) int {
	n := hwPtr - r.hwIO
	if n < 0 {
		n += r.hwBufferSize
	}

	r.hwIO = hwPtr
	r.hwReady -= n
	r.swIO = (r.swIO + n) % r.swBufferSize

	return r.swIO
}
