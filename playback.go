package aio

import (
	"fmt"
	"log/slog"
	"sync"
)

// PlaybackOptions configure a playback stream at open time.
type PlaybackOptions struct {
	// Sinks selects the destinations fed from the stream, any of SINK_I2S|SINK_SPDIF|SINK_HDMI.
	Sinks Sink
	// PeriodElapsed is called outside the stream lock once per period consumed by the
	// master sink.
	PeriodElapsed func()
}

// sinkState is the private DMA buffer and submission state of one destination.
type sinkState struct {
	kind       Sink
	ch         int
	buf        *DMABuffer
	zero       *DMABuffer
	frameBytes int
	period     int
	buffer     int
	master     bool

	ready     int    // ALSA bytes transformed but not submitted
	offset    int    // sink byte offset of the next submission
	fifo      []bool // submitted units, oldest first, true for the zero buffer
	inDMASize int    // ALSA bytes of data in flight
}

// PlaybackStream is an open playback substream feeding up to three sinks.
type PlaybackStream struct {
	card  *Card
	hub   DHub
	name  string
	sinks Sink
	log   *slog.Logger
	diag  *diagLimiter

	periodElapsed func()

	mu         sync.Mutex
	state      PcmState
	params     HwParams
	ring       []byte
	pcmPeriod  int
	pcmBuffer  int
	frameBytes int
	out        []*sinkState
	ind        pcmIndirect
	playing    bool
	hwPtr      int
	hwTotal    uint64
	applTotal  uint64

	spdif      *SpdifEncoder
	hdmi       *HdmiEncoder
	hdmiMap    []int
	dataParsed bool
	burstType  BurstType
	burst      BurstHeader

	counters streamCounters
}

// OpenPlayback opens a playback stream.
func (c *Card) OpenPlayback(name string, opts PlaybackOptions) (*PlaybackStream, error) {
	if opts.Sinks == 0 || opts.Sinks&^(SINK_I2S|SINK_SPDIF|SINK_HDMI) != 0 {
		return nil, fmt.Errorf("sink set %#x: %w", uint32(opts.Sinks), ErrNoSink)
	}

	for _, sk := range []Sink{SINK_I2S, SINK_SPDIF, SINK_HDMI} {
		if opts.Sinks&sk != 0 && c.variant.sinkChannel(sk) < 0 {
			return nil, fmt.Errorf("%v on %s: %w", sk, c.variant.Name, ErrNoSink)
		}
	}

	log := streamLogger(c.log, name, "playback")

	s := &PlaybackStream{
		card:          c,
		hub:           c.hub,
		name:          name,
		sinks:         opts.Sinks,
		log:           log,
		diag:          newDiagLimiter(log),
		periodElapsed: opts.PeriodElapsed,
		state:         PCM_STATE_OPEN,
		counters:      streamCounters{name: name},
	}

	if err := c.register(s); err != nil {
		return nil, err
	}

	s.log.Debug("opened", "sinks", opts.Sinks)

	return s, nil
}

// Name returns the stream name.
func (s *PlaybackStream) Name() string { return s.name }

// Direction returns "playback".
func (s *PlaybackStream) Direction() string { return "playback" }

// Sinks returns the destination set.
func (s *PlaybackStream) Sinks() Sink { return s.sinks }

// State returns the lifecycle state.
func (s *PlaybackStream) State() PcmState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Params returns the parameters applied by HwParams.
func (s *PlaybackStream) Params() HwParams {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.params
}

// Stats returns the stream counters.
func (s *PlaybackStream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters.stats
}

// SinkChannel returns the dHub channel feeding a sink, or -1.
func (s *PlaybackStream) SinkChannel(sk Sink) int {
	if s.sinks&sk == 0 {
		return -1
	}

	return s.card.variant.sinkChannel(sk)
}

// SinkPeriodBytes returns the size of one period in a sink buffer, or 0.
func (s *PlaybackStream) SinkPeriodBytes(sk Sink) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o := s.sink(sk); o != nil {
		return o.period
	}

	return 0
}

// InFlight returns the number of units a sink has submitted and not seen complete.
func (s *PlaybackStream) InFlight(sk Sink) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o := s.sink(sk); o != nil {
		return len(o.fifo)
	}

	return 0
}

// Burst returns the latched IEC61937 classification.
func (s *PlaybackStream) Burst() (BurstHeader, BurstType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.burst, s.burstType, s.dataParsed
}

// SpdifChannelStatus returns the channel status the SPDIF sink encodes.
func (s *PlaybackStream) SpdifChannelStatus() ChannelStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spdif == nil {
		return ChannelStatus{}
	}

	return s.spdif.ChannelStatus()
}

// HdmiChannelStatus returns the channel status of an HDMI slot.
func (s *PlaybackStream) HdmiChannelStatus(slot int) ChannelStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hdmi == nil || slot >= s.hdmi.Slots() {
		return ChannelStatus{}
	}

	return s.hdmi.ChannelStatus(slot)
}

// HdmiMap returns the source channel of every HDMI slot.
func (s *PlaybackStream) HdmiMap() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int(nil), s.hdmiMap...)
}

func (s *PlaybackStream) sink(sk Sink) *sinkState {
	for _, o := range s.out {
		if o.kind == sk {
			return o
		}
	}

	return nil
}

func (s *PlaybackStream) sinkByChannel(ch int) *sinkState {
	for _, o := range s.out {
		if o.ch == ch {
			return o
		}
	}

	return nil
}

// sinkFrameBytes returns the bytes one ALSA frame expands to in a sink.
func sinkFrameBytes(sk Sink, channels int) int {
	switch sk {
	case SINK_I2S:
		return max(2, channels) * slotBytes
	case SINK_SPDIF:
		return 2 * slotBytes
	case SINK_HDMI:
		return HdmiSlots(channels) * slotBytes
	default:
		return 0
	}
}

func channelStatusConfig(p HwParams, rate uint32) ChannelStatusConfig {
	wl := PcmFormatWidth(p.Format)
	if wl > 24 {
		wl = 24
	}

	return ChannelStatusConfig{
		NonPCM:        p.Passthrough,
		CopyPermitted: true,
		Category:      IEC958_AES1_CON_PCM_CODER,
		Rate:          rate,
		WordLength:    wl,
	}
}

// HwParams validates p, allocates one buffer and one zero buffer per sink and sets up
// the encoders. Buffers of a previous call are freed first. On error nothing stays allocated.
func (s *PlaybackStream) HwParams(p HwParams) error {
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

	if err := validateParams(p); err != nil {
		return err
	}

	ch := int(p.Channels)
	if s.sinks&SINK_I2S != 0 && ch > s.card.variant.MaxI2SChannels {
		return fmt.Errorf("%d i2s channels on %s: %w", ch, s.card.variant.Name, ErrUnsupportedChannels)
	}

	// Bitstreams travel as 16-bit stereo frames.
	if p.Passthrough && (p.Format != SNDRV_PCM_FORMAT_S16_LE || ch != 2) {
		return fmt.Errorf("passthrough needs S16_LE stereo, got %v x%d: %w", p.Format, ch, ErrUnsupportedFormat)
	}

	var hdmiMap []int
	if s.sinks&SINK_HDMI != 0 {
		var err error
		if hdmiMap, err = HdmiChannelMap(ch, s.card.hdmiOverride(ch)); err != nil {
			return err
		}
	}

	frames := int(BytesToFrames(p.Format, p.Channels, p.PeriodBytes))
	periods := int(p.Periods())

	var out []*sinkState
	free := func() {
		for _, o := range out {
			s.card.pool.Free(o.buf)
			s.card.pool.Free(o.zero)
		}
	}

	for _, sk := range []Sink{SINK_I2S, SINK_SPDIF, SINK_HDMI} {
		if s.sinks&sk == 0 {
			continue
		}

		o := &sinkState{
			kind:       sk,
			ch:         s.card.variant.sinkChannel(sk),
			frameBytes: sinkFrameBytes(sk, ch),
			master:     len(out) == 0,
		}
		o.period = frames * o.frameBytes
		o.buffer = o.period * periods

		var err error
		if o.buf, err = s.card.pool.Alloc(o.buffer); err != nil {
			free()

			return fmt.Errorf("%v buffer: %w", sk, err)
		}

		if o.zero, err = s.card.pool.Alloc(o.period); err != nil {
			s.card.pool.Free(o.buf)
			free()

			return fmt.Errorf("%v zero buffer: %w", sk, err)
		}

		out = append(out, o)
	}

	cfg := channelStatusConfig(p, p.Rate)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = p
	s.out = out
	s.ring = make([]byte, p.BufferBytes)
	s.pcmPeriod = int(p.PeriodBytes)
	s.pcmBuffer = int(p.BufferBytes)
	s.frameBytes = int(FrameBytes(p.Format, p.Channels))
	s.hdmiMap = hdmiMap
	s.dataParsed = false
	s.burstType = BURST_UNKNOWN
	s.burst = BurstHeader{}
	s.spdif = nil
	s.hdmi = nil

	if s.sinks&SINK_SPDIF != 0 {
		cs := NewChannelStatus(cfg)
		if o := s.card.spdifOverride(); o != nil && !p.Passthrough {
			cs = *o
		}

		s.spdif = NewSpdifEncoder(cs)
	}

	if s.sinks&SINK_HDMI != 0 {
		s.hdmi = NewHdmiEncoder(HdmiSlots(ch), cfg)
	}

	s.ind.reset(s.pcmBuffer)
	s.state = PCM_STATE_SETUP

	s.log.Info("hw_params", "rate", p.Rate, "format", p.Format, "channels", ch,
		"period", p.PeriodBytes, "buffer", p.BufferBytes, "sinks", len(out), "passthrough", p.Passthrough)

	return nil
}

// HwFree releases the sink buffers and forgets the burst classification.
func (s *PlaybackStream) HwFree() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case PCM_STATE_RUNNING:
		return fmt.Errorf("hw_free while running: %w", ErrBadState)
	case PCM_STATE_OPEN, PCM_STATE_CLOSED:
		return nil
	}

	for _, o := range s.out {
		s.card.pool.Free(o.buf)
		s.card.pool.Free(o.zero)
	}

	s.out = nil
	s.ring = nil
	s.dataParsed = false
	s.burstType = BURST_UNKNOWN
	s.state = PCM_STATE_OPEN

	return nil
}

// Prepare resets the indirect ring, the sinks and the encoders.
func (s *PlaybackStream) Prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case PCM_STATE_SETUP, PCM_STATE_PREPARED, PCM_STATE_STOPPED:
	default:
		return fmt.Errorf("prepare in state %v: %w", s.state, ErrBadState)
	}

	s.ind.reset(s.pcmBuffer)
	s.hwPtr = 0
	s.hwTotal = 0
	s.applTotal = 0

	for _, o := range s.out {
		o.ready, o.offset, o.inDMASize = 0, 0, 0
		o.fifo = nil
	}

	if s.spdif != nil {
		s.spdif.Reset()
	}

	if s.hdmi != nil {
		s.hdmi.Reset()
	}

	s.state = PCM_STATE_PREPARED

	return nil
}

// Trigger starts or stops every sink.
func (s *PlaybackStream) Trigger(cmd TriggerCmd) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case TRIGGER_START:
		if s.state != PCM_STATE_PREPARED && s.state != PCM_STATE_STOPPED {
			return fmt.Errorf("start in state %v: %w", s.state, ErrBadState)
		}

		s.playing = true
		s.state = PCM_STATE_RUNNING

		for _, o := range s.out {
			s.hub.EnableInterrupt(o.ch, true)
			s.feed(o)
		}
	case TRIGGER_STOP:
		if s.state != PCM_STATE_RUNNING {
			return fmt.Errorf("stop in state %v: %w", s.state, ErrBadState)
		}

		s.playing = false

		for _, o := range s.out {
			s.hub.EnableInterrupt(o.ch, false)
			s.hub.Clear(o.ch)

			// Data periods that never completed are handed back for a later start.
			for _, zero := range o.fifo {
				if !zero {
					o.offset = (o.offset - o.period + o.buffer) % o.buffer
					o.ready += s.pcmPeriod
				}
			}

			o.fifo = nil
			o.inDMASize = 0
		}

		s.state = PCM_STATE_STOPPED
	default:
		return fmt.Errorf("trigger %d: %w", cmd, ErrBadState)
	}

	return nil
}

// Avail returns how many bytes the application may write.
func (s *PlaybackStream) Avail() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pcmBuffer - int(s.applTotal-s.hwTotal)
}

// Write copies whole frames of data into the ALSA ring and acknowledges them.
// It never blocks and returns the number of bytes accepted.
func (s *PlaybackStream) Write(data []byte) (int, error) {
	s.mu.Lock()

	switch s.state {
	case PCM_STATE_PREPARED, PCM_STATE_RUNNING, PCM_STATE_STOPPED:
	default:
		state := s.state
		s.mu.Unlock()

		return 0, fmt.Errorf("write in state %v: %w", state, ErrBadState)
	}

	n := s.pcmBuffer - int(s.applTotal-s.hwTotal)
	if n > len(data) {
		n = len(data)
	}

	n -= n % s.frameBytes

	for done := 0; done < n; {
		off := int(s.applTotal % uint64(s.pcmBuffer))
		c := copy(s.ring[off:], data[done:n])
		done += c
		s.applTotal += uint64(c)
	}

	appl := s.applTotal
	s.mu.Unlock()

	s.Ack(appl)

	return n, nil
}

// Ack transforms application data up to applPtr into every sink and feeds the sinks.
func (s *PlaybackStream) Ack(applPtr uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring == nil {
		return
	}

	s.ind.transfer(applPtr, s.xfer)

	for _, o := range s.out {
		s.feed(o)
	}
}

// Pointer returns the position consumed by the master sink in frames.
func (s *PlaybackStream) Pointer() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frameBytes == 0 {
		return 0
	}

	return uint32(s.ind.swIO / s.frameBytes)
}

// feed submits ready periods of a sink. Called with the lock held.
// I2S and SPDIF keep one unit in flight, HDMI a pipeline of HDMI_PIPELINE_DEPTH.
// When nothing is ready and the dHub channel is idle the zero buffer goes out instead.
func (s *PlaybackStream) feed(o *sinkState) {
	if !s.playing {
		return
	}

	limit := 1
	if o.kind == SINK_HDMI {
		limit = HDMI_PIPELINE_DEPTH
	}

	for len(o.fifo) < limit && o.ready >= s.pcmPeriod {
		n := enqueueSpans(s.hub, o.ch, o.buf.Addr+uint64(o.offset), o.period, true)
		if n == 0 {
			s.counters.queueFull(o.kind.String())
			s.diag.Debug("dhub queue full", "sink", o.kind, "ch", o.ch)

			return
		}

		s.counters.split(n)
		o.fifo = append(o.fifo, false)
		o.offset = (o.offset + o.period) % o.buffer
		o.ready -= s.pcmPeriod
		o.inDMASize += s.pcmPeriod
	}

	if len(o.fifo) > 0 || commandsInFlight(s.hub, o.ch) != 0 {
		return
	}

	if enqueueSpans(s.hub, o.ch, o.zero.Addr, o.period, true) == 0 {
		s.counters.queueFull(o.kind.String())

		return
	}

	o.fifo = append(o.fifo, true)
	s.counters.underflow(o.kind.String())
	s.diag.Debug("underflow, zero buffer queued", "sink", o.kind)
	s.card.bus.Publish(XrunEvent{Stream: s.name, Underflow: true, Count: s.counters.stats.Underflows})
}

// ISR handles the completion interrupt of dHub channel ch.
func (s *PlaybackStream) ISR(ch int) {
	s.mu.Lock()

	o := s.sinkByChannel(ch)
	if o == nil {
		s.mu.Unlock()

		return
	}

	if !s.playing || len(o.fifo) == 0 {
		s.counters.spurious(o.kind.String())
		s.diag.Debug("spurious interrupt", "sink", o.kind, "ch", ch)
		s.mu.Unlock()

		return
	}

	elapsed := 0

	if o.kind == SINK_HDMI {
		elapsed += s.resumeCmd(o)
	}

	if s.complete(o) {
		elapsed++
	}

	s.feed(o)
	s.mu.Unlock()

	if s.periodElapsed != nil {
		for i := 0; i < elapsed; i++ {
			s.periodElapsed()
		}
	}
}

// complete retires the oldest unit of a sink and reports whether the ALSA pointer moved.
func (s *PlaybackStream) complete(o *sinkState) bool {
	zero := o.fifo[0]
	o.fifo = o.fifo[1:]

	if zero {
		return false
	}

	o.inDMASize -= s.pcmPeriod
	s.counters.period(o.kind.String())

	if !o.master {
		return false
	}

	s.hwPtr = (s.hwPtr + s.pcmPeriod) % s.pcmBuffer
	s.hwTotal += uint64(s.pcmPeriod)
	s.ind.pointer(s.hwPtr)

	return true
}

// resumeCmd resynchronizes the unit count with the dHub command queue.
//
// A completion interrupt can get lost. The units still expected besides the one being
// completed are compared to the commands the dHub still holds, and any excess is retired
// as if its interrupt had arrived. Command splitting makes the command count an upper
// bound, so a dropped unit next to a split one goes unnoticed; that case cannot be told
// apart from a healthy queue and is left alone.
func (s *PlaybackStream) resumeCmd(o *sinkState) int {
	unitRemain := len(o.fifo) - 1
	cmdInFlight := commandsInFlight(s.hub, o.ch)

	if unitRemain <= cmdInFlight {
		return 0
	}

	skip := unitRemain - cmdInFlight
	if skip >= len(o.fifo) {
		return 0
	}

	elapsed := 0
	for i := 0; i < skip; i++ {
		if s.complete(o) {
			elapsed++
		}
	}

	s.counters.desync(o.kind.String(), skip)
	s.diag.Debug("dhub desync, units skipped", "sink", o.kind, "skip", skip)

	return elapsed
}

// Close stops the stream if needed and frees its buffers.
func (s *PlaybackStream) Close() error {
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

	s.card.unregister(s.name)
	DeleteMetrics(s.name)

	s.mu.Lock()
	s.state = PCM_STATE_CLOSED
	s.mu.Unlock()

	s.log.Debug("closed")

	return nil
}
