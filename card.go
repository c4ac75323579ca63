package aio

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// CardConfig holds everything a card is built from.
type CardConfig struct {
	Profile Profile
	// Hub overrides the process-wide dHub handle.
	Hub    DHub
	Logger *slog.Logger
}

// StreamInfo is implemented by capture and playback streams.
type StreamInfo interface {
	Name() string
	State() PcmState
	Stats() Stats
	Direction() string
	Close() error
}

// Card is one AIO instance: the SoC capability table, the shared enables, the controls and
// the streams opened on it.
type Card struct {
	mu       sync.Mutex
	profile  Profile
	variant  Variant
	hub      DHub
	pool     *DMAPool
	log      *slog.Logger
	bus      *Bus
	controls *Controls
	cmds     *CommandTable
	pdm      *EnableGuard
	mic1     *EnableGuard
	streams  map[string]StreamInfo

	iecOverride *ChannelStatus
}

// NewCard builds a card from cfg. The dHub handle is taken from cfg.Hub, else from Hub().
func NewCard(cfg CardConfig) (*Card, error) {
	p := cfg.Profile
	if p.Variant == "" {
		p = DefaultProfile()
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	v, err := LookupVariant(p.Variant)
	if err != nil {
		return nil, err
	}

	if p.HubDepth > 0 {
		v.HubDepth = p.HubDepth
	}

	if p.Channels != nil {
		v.Channels = *p.Channels
	}

	h := cfg.Hub
	if h == nil {
		h, err = Hub()
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", v.Name, err)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	c := &Card{
		profile: p,
		variant: v,
		hub:     h,
		pool:    NewDMAPool(p.DMABase),
		log:     log.With("module", "aio", "card", v.Name),
		bus:     NewBus(),
		cmds:    NewCommandTable(),
		streams: make(map[string]StreamInfo),
	}

	c.pdm = NewEnableGuard("pdm", func(on bool) { c.log.Info("pdm block", "enabled", on) })
	c.mic1 = NewEnableGuard("mic1", func(on bool) { c.log.Info("dmic block", "enabled", on) })

	if err := c.addControls(); err != nil {
		return nil, err
	}

	c.addCommands()

	return c, nil
}

func (c *Card) addControls() error {
	c.controls = NewControls()
	c.controls.AddBool(CTL_MIC_MUTE_DETECT, c.profile.MicMute, nil)
	c.controls.AddBool(CTL_DMIC_SWAP, c.profile.DMICSwap, nil)

	chmap := c.controls.AddInt(CTL_HDMI_CHMAP, MAX_CHANNELS, int(SNDRV_CHMAP_UNKNOWN), int(SNDRV_CHMAP_RC), nil)

	override, err := c.profile.ChannelMap()
	if err != nil {
		return err
	}

	if len(override) > 0 {
		vals := make([]int, len(override))
		for i, pos := range override {
			vals[i] = int(pos)
		}

		if err := chmap.SetArray(vals); err != nil {
			return err
		}
	}

	def := NewChannelStatus(ChannelStatusConfig{Rate: 48000, WordLength: 24, CopyPermitted: true})
	c.controls.AddIEC958(CTL_IEC958_DEFAULT, def, func(ctl *Control) {
		cs, err := ctl.IEC958()
		if err != nil {
			return
		}

		c.mu.Lock()
		c.iecOverride = &cs
		c.mu.Unlock()
	})

	return nil
}

func (c *Card) addCommands() {
	c.cmds.Register("pdm", 1, "pdm <0|1>: release or acquire the PDM block enable", func(args []int) error {
		if args[0] != 0 {
			c.pdm.Acquire()
		} else {
			c.pdm.Release()
		}

		return nil
	})

	c.cmds.Register("mic1", 1, "mic1 <0|1>: release or acquire the DMIC block enable", func(args []int) error {
		if args[0] != 0 {
			c.mic1.Acquire()
		} else {
			c.mic1.Release()
		}

		return nil
	})

	c.cmds.Register("dmic_swap", 1, "dmic_swap <0|1>: swap left and right of every DMIC pair", func(args []int) error {
		return c.setCtl(CTL_DMIC_SWAP, args...)
	})

	c.cmds.Register("micmute", 1, "micmute <0|1>: enable mic-mute detection", func(args []int) error {
		return c.setCtl(CTL_MIC_MUTE_DETECT, args...)
	})

	c.cmds.Register("hdmi_chmap", -1, "hdmi_chmap <pos>...: set the HDMI speaker positions", func(args []int) error {
		ctl, err := c.controls.CtlByName(CTL_HDMI_CHMAP)
		if err != nil {
			return err
		}

		return ctl.SetArray(args)
	})

	c.cmds.Register("clear", 1, "clear <ch>: drop every queued command of a dHub channel", func(args []int) error {
		c.hub.Clear(args[0])

		return nil
	})

	c.cmds.Register("intr", 2, "intr <ch> <0|1>: arm or disarm a dHub channel interrupt", func(args []int) error {
		c.hub.EnableInterrupt(args[0], args[1] != 0)

		return nil
	})

	c.cmds.Register("stats", 0, "stats: log the counters of every open stream", func([]int) error {
		for _, s := range c.Streams() {
			st := s.Stats()
			c.log.Info("stream stats", "stream", s.Name(), "dir", s.Direction(), "state", s.State(),
				"periods", st.Periods, "underflows", st.Underflows, "overflows", st.Overflows,
				"queue_full", st.QueueFull, "desyncs", st.Desyncs, "spurious", st.Spurious)
		}

		return nil
	})
}

func (c *Card) setCtl(name string, args ...int) error {
	ctl, err := c.controls.CtlByName(name)
	if err != nil {
		return err
	}

	return ctl.SetValue(0, args[0])
}

// Variant returns the capability table in use.
func (c *Card) Variant() Variant { return c.variant }

// Profile returns the profile the card was built from.
func (c *Card) Profile() Profile { return c.profile }

// DHub returns the dHub handle of the card.
func (c *Card) DHub() DHub { return c.hub }

// Pool returns the DMA pool of the card.
func (c *Card) Pool() *DMAPool { return c.pool }

// Bus returns the event bus of the card.
func (c *Card) Bus() *Bus { return c.bus }

// Controls returns the control registry of the card.
func (c *Card) Controls() *Controls { return c.controls }

// Commands returns the debug command interpreter of the card.
func (c *Card) Commands() *CommandTable { return c.cmds }

// PDMGuard returns the PDM block enable.
func (c *Card) PDMGuard() *EnableGuard { return c.pdm }

// MicGuard returns the DMIC block enable.
func (c *Card) MicGuard() *EnableGuard { return c.mic1 }

func (c *Card) ctlBool(name string) bool {
	ctl, err := c.controls.CtlByName(name)
	if err != nil {
		return false
	}

	return ctl.Bool()
}

func (c *Card) hdmiOverride(channels int) []ChannelPos {
	ctl, err := c.controls.CtlByName(CTL_HDMI_CHMAP)
	if err != nil {
		return nil
	}

	vals := ctl.Array()
	if channels > len(vals) {
		return nil
	}

	out := make([]ChannelPos, channels)
	for i := range out {
		if vals[i] == int(SNDRV_CHMAP_UNKNOWN) {
			return nil
		}

		out[i] = ChannelPos(vals[i])
	}

	return out
}

func (c *Card) spdifOverride() *ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.iecOverride
}

func (c *Card) register(s StreamInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.streams[s.Name()]; ok {
		return fmt.Errorf("%s: %w", s.Name(), ErrStreamExists)
	}

	c.streams[s.Name()] = s

	return nil
}

func (c *Card) unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.streams, name)
}

// Streams returns the open streams sorted by name.
func (c *Card) Streams() []StreamInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]StreamInfo, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

// Close closes every stream still open on the card.
func (c *Card) Close() error {
	var firstErr error

	for _, s := range c.Streams() {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// String returns a human-readable summary of the card and its streams.
func (c *Card) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Card %s: pdm pairs %d, dmic pairs %d, hdmi %v\n",
		c.variant.Name, c.variant.PDMPairs, c.variant.DMICPairs, c.variant.HDMI))
	for _, s := range c.Streams() {
		sb.WriteString(fmt.Sprintf("  %s (%s) [%s]\n", s.Name(), s.Direction(), s.State()))
	}

	return sb.String()
}
