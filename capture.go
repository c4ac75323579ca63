package aio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CaptureOptions configure a capture stream at open time.
type CaptureOptions struct {
	Mode StreamMode
	// PeriodElapsed is called outside the stream lock with the ALSA ring region of every
	// decoded period. The slice is only valid until the ring wraps around to it.
	PeriodElapsed func(period []byte)
}

// captureChunk is one completed device period waiting to be decoded.
type captureChunk struct {
	offset  int // device ring offset, per chid
	silence bool
}

// Cursors is a snapshot of the ring bookkeeping of a capture stream.
type Cursors struct {
	CurrentDMAOffset int
	ReadOffset       int
	RuntimeOffset    int
	Cnt              int
	DMABytesCh       int
	PCMBufferBytes   int
	Pending          bool
}

// CaptureStream is an open capture substream.
//
// The device side is a ring of dmaBytesCh bytes on each of chids dHub channels, fed one
// period at a time. Completed periods are decoded into the ALSA ring, either directly in
// the ISR or on the stream work queue depending on the mode.
type CaptureStream struct {
	card *Card
	hub  DHub
	name string
	mode StreamMode
	log  *slog.Logger
	diag *diagLimiter
	wq   *workQueue

	periodElapsed func([]byte)

	mu     sync.Mutex
	state  PcmState
	params HwParams

	chids   int
	hubCh   [MAX_CHID]int
	dma     [MAX_CHID]*DMABuffer
	discard [MAX_CHID]*DMABuffer
	ring    []byte

	dmaBytesCh  int
	devPeriodCh int
	pcmPeriod   int
	pcmBuffer   int
	hwChannels  int

	currentDMAOffset int
	readOffset       int
	runtimeOffset    int
	cnt              int
	dmaPending       bool
	discardPending   bool
	capturing        bool
	queue            []captureChunk

	cic      []*CICDecimator
	mic      *MicMuteDetector
	micOn    bool
	swap     bool
	guardOn  bool
	counters streamCounters
}

// OpenCapture opens a capture stream in the given mode.
func (c *Card) OpenCapture(name string, opts CaptureOptions) (*CaptureStream, error) {
	if _, ok := streamModeNames[opts.Mode]; !ok {
		return nil, fmt.Errorf("capture mode %d: %w", opts.Mode, ErrBadState)
	}

	log := streamLogger(c.log, name, "capture")

	s := &CaptureStream{
		card:          c,
		hub:           c.hub,
		name:          name,
		mode:          opts.Mode,
		log:           log,
		diag:          newDiagLimiter(log),
		periodElapsed: opts.PeriodElapsed,
		state:         PCM_STATE_OPEN,
		counters:      streamCounters{name: name},
	}

	if err := c.register(s); err != nil {
		return nil, err
	}

	s.wq = newWorkQueue(s.work)
	s.log.Debug("opened", "mode", opts.Mode)

	return s, nil
}

// Name returns the stream name.
func (s *CaptureStream) Name() string { return s.name }

// Direction returns "capture".
func (s *CaptureStream) Direction() string { return "capture" }

// Mode returns the capture source type.
func (s *CaptureStream) Mode() StreamMode { return s.mode }

// State returns the lifecycle state.
func (s *CaptureStream) State() PcmState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Params returns the parameters applied by HwParams.
func (s *CaptureStream) Params() HwParams {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.params
}

// FrameSize returns the size of a single ALSA frame in bytes.
func (s *CaptureStream) FrameSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return FrameBytes(s.params.Format, s.params.Channels)
}

// PeriodTime returns the duration of a single period.
func (s *CaptureStream) PeriodTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.periodTime()
}

func (s *CaptureStream) periodTime() time.Duration {
	frames := BytesToFrames(s.params.Format, s.params.Channels, s.params.PeriodBytes)
	if s.params.Rate == 0 {
		return 0
	}

	return time.Duration(uint64(frames) * uint64(time.Second) / uint64(s.params.Rate))
}

// Channels returns the dHub channels in use, one per chid.
func (s *CaptureStream) Channels() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int(nil), s.hubCh[:s.chids]...)
}

// DevicePeriodBytes returns the device-side period size per dHub channel.
func (s *CaptureStream) DevicePeriodBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.devPeriodCh
}

// Stats returns the stream counters.
func (s *CaptureStream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters.stats
}

// Cursors returns a snapshot of the ring bookkeeping.
func (s *CaptureStream) Cursors() Cursors {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Cursors{
		CurrentDMAOffset: s.currentDMAOffset,
		ReadOffset:       s.readOffset,
		RuntimeOffset:    s.runtimeOffset,
		Cnt:              s.cnt,
		DMABytesCh:       s.dmaBytesCh,
		PCMBufferBytes:   s.pcmBuffer,
		Pending:          s.dmaPending,
	}
}

// Ring returns the ALSA ring buffer.
func (s *CaptureStream) Ring() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ring
}

// MicMuteState returns the state of the mic-mute heuristic.
func (s *CaptureStream) MicMuteState() MicMuteState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mic == nil {
		return MIC_MUTE_UNKNOWN
	}

	return s.mic.State()
}

// HwParams validates p, sizes the device rings and allocates the DMA buffers.
// Buffers of a previous call are freed first. On error nothing stays allocated.
func (s *CaptureStream) HwParams(p HwParams) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case PCM_STATE_OPEN, PCM_STATE_SETUP, PCM_STATE_PREPARED, PCM_STATE_STOPPED:
	default:
		return fmt.Errorf("hw_params in state %v: %w", state, ErrBadState)
	}

	if state != PCM_STATE_OPEN {
		if err := s.HwFree(); err != nil {
			return err
		}
	}

	geo, err := s.card.captureGeometry(s.mode, p)
	if err != nil {
		return err
	}

	var cic []*CICDecimator
	if s.mode == PDMI_MODE {
		cic = make([]*CICDecimator, p.Channels)
		for i := range cic {
			if cic[i], err = CICForRate(p.Rate); err != nil {
				return err
			}
		}
	}

	var dma, discard [MAX_CHID]*DMABuffer
	free := func() {
		for i := range dma {
			s.card.pool.Free(dma[i])
			s.card.pool.Free(discard[i])
		}
	}

	for i := 0; i < geo.chids; i++ {
		if dma[i], err = s.card.pool.Alloc(geo.dmaBytesCh); err != nil {
			free()

			return fmt.Errorf("capture ring %d: %w", i, err)
		}

		if discard[i], err = s.card.pool.Alloc(geo.devPeriodCh); err != nil {
			free()

			return fmt.Errorf("capture discard buffer %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = p
	s.chids = geo.chids
	s.hubCh = geo.hubCh
	s.dma = dma
	s.discard = discard
	s.dmaBytesCh = geo.dmaBytesCh
	s.devPeriodCh = geo.devPeriodCh
	s.hwChannels = geo.hwChannels
	s.pcmPeriod = int(p.PeriodBytes)
	s.pcmBuffer = int(p.BufferBytes)
	s.ring = make([]byte, p.BufferBytes)
	s.cic = cic
	s.micOn = p.MicMute || s.card.ctlBool(CTL_MIC_MUTE_DETECT)
	s.swap = s.card.ctlBool(CTL_DMIC_SWAP)

	if s.micOn {
		chunkUs := uint64(s.periodTime() / time.Microsecond)
		if s.mic == nil {
			s.mic = NewMicMuteDetector(chunkUs)
		} else {
			s.mic.SetChunkDuration(chunkUs)
		}
	}

	s.state = PCM_STATE_SETUP

	s.log.Info("hw_params", "rate", p.Rate, "format", p.Format, "channels", p.Channels,
		"period", p.PeriodBytes, "buffer", p.BufferBytes, "chids", geo.chids,
		"dev_period", geo.devPeriodCh, "dev_buffer", geo.dmaBytesCh)

	return nil
}

// HwFree waits for pending decode work and releases the DMA buffers.
func (s *CaptureStream) HwFree() error {
	s.mu.Lock()
	if s.state == PCM_STATE_RUNNING {
		s.mu.Unlock()

		return fmt.Errorf("hw_free while running: %w", ErrBadState)
	}

	if s.state == PCM_STATE_OPEN || s.state == PCM_STATE_CLOSED {
		s.mu.Unlock()

		return nil
	}
	s.mu.Unlock()

	// The worker reads the DMA buffers, it must be idle before they go away.
	s.wq.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.dma {
		s.card.pool.Free(s.dma[i])
		s.card.pool.Free(s.discard[i])
		s.dma[i], s.discard[i] = nil, nil
	}

	s.queue = nil
	s.ring = nil
	s.cic = nil
	s.chids = 0
	s.state = PCM_STATE_OPEN

	return nil
}

// Prepare resets the cursors and the decimator state.
func (s *CaptureStream) Prepare() error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case PCM_STATE_SETUP, PCM_STATE_PREPARED, PCM_STATE_STOPPED:
	default:
		return fmt.Errorf("prepare in state %v: %w", state, ErrBadState)
	}

	s.wq.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentDMAOffset = 0
	s.readOffset = 0
	s.runtimeOffset = 0
	s.cnt = 0
	s.dmaPending = false
	s.discardPending = false
	s.queue = nil

	for _, d := range s.cic {
		d.Reset()
	}

	s.state = PCM_STATE_PREPARED

	return nil
}

// Trigger starts or stops the DMA ring.
// Stopping does not wait for the transfer in flight, the dHub channels are cleared instead.
func (s *CaptureStream) Trigger(cmd TriggerCmd) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case TRIGGER_START:
		if s.state != PCM_STATE_PREPARED && s.state != PCM_STATE_STOPPED {
			return fmt.Errorf("start in state %v: %w", s.state, ErrBadState)
		}

		s.acquireGuard()

		for i := 0; i < s.chids; i++ {
			s.hub.EnableInterrupt(s.hubCh[i], true)
		}

		s.capturing = true
		s.state = PCM_STATE_RUNNING
		s.startDMAIfNeeded()
	case TRIGGER_STOP:
		if s.state != PCM_STATE_RUNNING {
			return fmt.Errorf("stop in state %v: %w", s.state, ErrBadState)
		}

		s.capturing = false
		s.dmaPending = false
		s.discardPending = false

		for i := 0; i < s.chids; i++ {
			s.hub.EnableInterrupt(s.hubCh[i], false)
			s.hub.Clear(s.hubCh[i])
		}

		s.releaseGuard()
		s.state = PCM_STATE_STOPPED
	default:
		return fmt.Errorf("trigger %d: %w", cmd, ErrBadState)
	}

	return nil
}

func (s *CaptureStream) guard() *EnableGuard {
	switch s.mode {
	case PDMI_MODE:
		return s.card.pdm
	case DMICI_MODE:
		return s.card.mic1
	default:
		return nil
	}
}

func (s *CaptureStream) acquireGuard() {
	if g := s.guard(); g != nil && !s.guardOn {
		g.Acquire()
		s.guardOn = true
	}
}

func (s *CaptureStream) releaseGuard() {
	if g := s.guard(); g != nil && s.guardOn {
		g.Release()
		s.guardOn = false
	}
}

// Pointer returns the ALSA hardware position in frames.
func (s *CaptureStream) Pointer() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return BytesToFrames(s.params.Format, s.params.Channels, uint32(s.runtimeOffset))
}

// startDMAIfNeeded submits the next device period. Called with the lock held.
// When the ring has no room the period is captured into the discard buffer, so the
// device keeps running and the ALSA pointer keeps moving.
func (s *CaptureStream) startDMAIfNeeded() {
	if !s.capturing || s.dmaPending {
		return
	}

	for i := 0; i < s.chids; i++ {
		if s.hub.FreeSpace(s.hubCh[i]) < len(SplitAtBoundary(s.dma[i].Addr+uint64(s.currentDMAOffset), s.devPeriodCh)) {
			s.counters.queueFull("capture")
			s.diag.Debug("dhub queue full", "ch", s.hubCh[i])

			return
		}
	}

	toDiscard := s.dmaBytesCh-s.cnt < s.devPeriodCh

	for i := 0; i < s.chids; i++ {
		addr := s.dma[i].Addr + uint64(s.currentDMAOffset)
		if toDiscard {
			addr = s.discard[i].Addr
		}

		// Only the last chid raises the interrupt, the others complete in lockstep.
		n := enqueueSpans(s.hub, s.hubCh[i], addr, s.devPeriodCh, i == s.chids-1)
		s.counters.split(n)
	}

	if toDiscard {
		s.diag.Debug("capture ring full, discarding period", "cnt", s.cnt)
	}

	s.dmaPending = true
	s.discardPending = toDiscard
}

// ISR handles the completion interrupt of dHub channel ch.
func (s *CaptureStream) ISR(ch int) {
	s.mu.Lock()

	if s.chids == 0 || ch != s.hubCh[s.chids-1] {
		s.mu.Unlock()

		return
	}

	if !s.capturing || !s.dmaPending {
		s.counters.spurious("capture")
		s.diag.Debug("spurious interrupt", "ch", ch)
		s.mu.Unlock()

		return
	}

	s.dmaPending = false

	if s.discardPending {
		s.discardPending = false
		s.counters.overflow("capture")
		s.queue = append(s.queue, captureChunk{silence: true})
		s.card.bus.Publish(XrunEvent{Stream: s.name, Count: s.counters.stats.Overflows})
	} else {
		s.queue = append(s.queue, captureChunk{offset: s.currentDMAOffset})
		s.currentDMAOffset = (s.currentDMAOffset + s.devPeriodCh) % s.dmaBytesCh
		s.cnt += s.devPeriodCh
	}

	s.startDMAIfNeeded()

	if s.mode == I2SI_MODE || s.mode == SPDIFI_MODE {
		// Fast paths copy in interrupt context.
		var elapsed [][]byte
		for len(s.queue) > 0 {
			elapsed = append(elapsed, s.decodeLocked())
		}
		s.mu.Unlock()

		s.notify(elapsed)

		return
	}

	s.mu.Unlock()
	s.wq.Queue()
}

// decodeLocked decodes the oldest queued chunk while holding the lock.
func (s *CaptureStream) decodeLocked() []byte {
	chunk := s.queue[0]
	s.queue = s.queue[1:]

	dst := s.ring[s.runtimeOffset : s.runtimeOffset+s.pcmPeriod]
	s.decode(chunk, dst)

	return s.finishChunk(chunk, dst)
}

// work drains the queue on the work queue goroutine. The decode runs unlocked, the ISR
// has already moved currentDMAOffset past the region being read.
func (s *CaptureStream) work() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.ring == nil {
			s.mu.Unlock()

			return
		}

		chunk := s.queue[0]
		s.queue = s.queue[1:]
		dst := s.ring[s.runtimeOffset : s.runtimeOffset+s.pcmPeriod]
		s.mu.Unlock()

		s.decode(chunk, dst)

		s.mu.Lock()
		period := s.finishChunk(chunk, dst)
		s.startDMAIfNeeded()
		s.mu.Unlock()

		s.notify([][]byte{period})
	}
}

func (s *CaptureStream) decode(chunk captureChunk, dst []byte) {
	if chunk.silence {
		clear(dst)

		return
	}

	src := make([][]byte, s.chids)
	for i := range src {
		src[i] = s.dma[i].Area[chunk.offset : chunk.offset+s.devPeriodCh]
	}

	switch s.mode {
	case PDMI_MODE:
		s.copyPDM(dst, src)
	case I2SI_MODE:
		s.copyI2S(dst, src[0])
	case DMICI_MODE:
		s.copyDMIC(dst, src)
	case SPDIFI_MODE:
		s.copySPDIF(dst, src[0])
	}
}

// finishChunk advances the cursors past a decoded chunk. Called with the lock held.
func (s *CaptureStream) finishChunk(chunk captureChunk, dst []byte) []byte {
	if !chunk.silence {
		s.readOffset = (s.readOffset + s.devPeriodCh) % s.dmaBytesCh
		s.cnt -= s.devPeriodCh
	}

	s.runtimeOffset = (s.runtimeOffset + s.pcmPeriod) % s.pcmBuffer
	s.counters.period("capture")

	// Overflow silence says nothing about the microphones.
	if s.micOn && s.mic != nil && !chunk.silence {
		if changed, muted := s.mic.Feed(dst); changed {
			s.counters.micTransition()
			s.log.Info("mic mute", "muted", muted)
			s.card.bus.Publish(MicMuteEvent{Stream: s.name, Muted: muted, Code: KEY_MICMUTE})
		}
	}

	return dst
}

func (s *CaptureStream) notify(periods [][]byte) {
	if s.periodElapsed == nil {
		return
	}

	for _, p := range periods {
		s.periodElapsed(p)
	}
}

// Flush waits until every completed period has been decoded.
func (s *CaptureStream) Flush() {
	s.wq.Flush()
}

// Close stops the stream if needed, frees its buffers and stops the worker.
func (s *CaptureStream) Close() error {
	s.mu.Lock()
	if s.state == PCM_STATE_CLOSED {
		s.mu.Unlock()

		return nil
	}
	running := s.state == PCM_STATE_RUNNING
	s.mu.Unlock()

	if running {
		if err := s.Trigger(TRIGGER_STOP); err != nil {
			return err
		}
	}

	if err := s.HwFree(); err != nil {
		return err
	}

	s.wq.Close()
	s.card.unregister(s.name)
	DeleteMetrics(s.name)

	s.mu.Lock()
	s.state = PCM_STATE_CLOSED
	s.mic = nil
	s.mu.Unlock()

	s.log.Debug("closed")

	return nil
}
