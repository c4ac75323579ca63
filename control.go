package aio

import (
	"fmt"
	"sync"
)

// CtlType defines the value type of a control.
type CtlType int32

const (
	CTL_TYPE_BOOL    CtlType = 1
	CTL_TYPE_INT     CtlType = 2
	CTL_TYPE_IEC958  CtlType = 5
	CTL_TYPE_UNKNOWN CtlType = -1
)

var ctlTypeNames = map[CtlType]string{
	CTL_TYPE_BOOL:    "BOOL",
	CTL_TYPE_INT:     "INT",
	CTL_TYPE_IEC958:  "IEC958",
	CTL_TYPE_UNKNOWN: "UNKNOWN",
}

// Well-known control names.
const (
	CTL_MIC_MUTE_DETECT = "Mic Mute Detect Switch"
	CTL_HDMI_CHMAP      = "HDMI Playback Channel Map"
	CTL_DMIC_SWAP       = "DMIC Swap Switch"
	CTL_IEC958_DEFAULT  = "IEC958 Playback Default"
)

// Control is one card control, a value array plus optional change hook.
type Control struct {
	mu       sync.Mutex
	id       uint32
	name     string
	ctlType  CtlType
	min, max int
	values   []int
	iec      ChannelStatus
	onChange func(*Control)
}

// Controls is the control registry of a card.
type Controls struct {
	mu       sync.RWMutex
	Ctls     []*Control
	ctlMap   map[string][]*Control // Maps a name to one or more controls
	ctlIdMap map[uint32]*Control
	nextID   uint32
}

// NewControls returns an empty registry.
func NewControls() *Controls {
	return &Controls{
		ctlMap:   make(map[string][]*Control),
		ctlIdMap: make(map[uint32]*Control),
		nextID:   1,
	}
}

func (m *Controls) add(ctl *Control) *Control {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctl.id = m.nextID
	m.nextID++

	m.Ctls = append(m.Ctls, ctl)
	m.ctlMap[ctl.name] = append(m.ctlMap[ctl.name], ctl)
	m.ctlIdMap[ctl.id] = ctl

	return ctl
}

// AddBool registers a boolean switch.
func (m *Controls) AddBool(name string, value bool, onChange func(*Control)) *Control {
	v := 0
	if value {
		v = 1
	}

	return m.add(&Control{name: name, ctlType: CTL_TYPE_BOOL, max: 1, values: []int{v}, onChange: onChange})
}

// AddInt registers an integer control with count values in [min, max].
func (m *Controls) AddInt(name string, count, min, max int, onChange func(*Control)) *Control {
	vals := make([]int, count)
	for i := range vals {
		vals[i] = min
	}

	return m.add(&Control{name: name, ctlType: CTL_TYPE_INT, min: min, max: max, values: vals, onChange: onChange})
}

// AddIEC958 registers a channel status control.
func (m *Controls) AddIEC958(name string, cs ChannelStatus, onChange func(*Control)) *Control {
	return m.add(&Control{name: name, ctlType: CTL_TYPE_IEC958, iec: cs, onChange: onChange})
}

// NumCtls returns the total number of controls.
func (m *Controls) NumCtls() int {
	if m == nil {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.Ctls)
}

// Ctl returns a control by its numeric ID.
func (m *Controls) Ctl(id uint32) (*Control, error) {
	if m == nil {
		return nil, fmt.Errorf("controls is nil")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ctl, ok := m.ctlIdMap[id]
	if !ok {
		return nil, fmt.Errorf("control with id %d not found", id)
	}

	return ctl, nil
}

// CtlByName returns the first control found with the given name.
func (m *Controls) CtlByName(name string) (*Control, error) {
	return m.CtlByNameAndIndex(name, 0)
}

// CtlByNameAndIndex returns a specific control by name and index.
func (m *Controls) CtlByNameAndIndex(name string, index uint) (*Control, error) {
	if m == nil {
		return nil, fmt.Errorf("controls is nil")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ctls, ok := m.ctlMap[name]
	if !ok {
		return nil, fmt.Errorf("control not found: %s", name)
	}

	if index >= uint(len(ctls)) {
		return nil, fmt.Errorf("index %d out of bounds for control %s", index, name)
	}

	return ctls[index], nil
}

// Name returns the name of the control.
func (c *Control) Name() string {
	if c == nil {
		return ""
	}

	return c.name
}

// ID returns the numeric ID of the control.
func (c *Control) ID() uint32 {
	if c == nil {
		return ^uint32(0)
	}

	return c.id
}

// Type returns the value type of the control.
func (c *Control) Type() CtlType {
	if c == nil {
		return CTL_TYPE_UNKNOWN
	}

	return c.ctlType
}

// TypeString returns the value type as a string.
func (c *Control) TypeString() string {
	return ctlTypeNames[c.Type()]
}

// NumValues returns the number of values of the control.
func (c *Control) NumValues() uint32 {
	if c == nil {
		return 0
	}

	if c.ctlType == CTL_TYPE_IEC958 {
		return 1
	}

	return uint32(len(c.values))
}

// Range returns the bounds of an integer control.
func (c *Control) Range() (int, int) {
	if c == nil {
		return 0, 0
	}

	return c.min, c.max
}

// Value returns value id of the control.
func (c *Control) Value(id uint) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("control is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if id >= uint(len(c.values)) {
		return 0, fmt.Errorf("index %d out of bounds for control %s", id, c.name)
	}

	return c.values[id], nil
}

// Bool returns the first value of the control as a switch state.
func (c *Control) Bool() bool {
	v, err := c.Value(0)

	return err == nil && v != 0
}

// SetValue sets value id of the control and runs the change hook.
func (c *Control) SetValue(id uint, value int) error {
	if c == nil {
		return fmt.Errorf("control is nil")
	}

	c.mu.Lock()
	if id >= uint(len(c.values)) {
		c.mu.Unlock()

		return fmt.Errorf("index %d out of bounds for control %s", id, c.name)
	}

	if value < c.min || value > c.max {
		c.mu.Unlock()

		return fmt.Errorf("value %d out of range [%d, %d] for control %s", value, c.min, c.max, c.name)
	}

	changed := c.values[id] != value
	c.values[id] = value
	c.mu.Unlock()

	if changed && c.onChange != nil {
		c.onChange(c)
	}

	return nil
}

// Array returns a copy of all values.
func (c *Control) Array() []int {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]int(nil), c.values...)
}

// SetArray sets all values at once and runs the change hook.
func (c *Control) SetArray(values []int) error {
	if c == nil {
		return fmt.Errorf("control is nil")
	}

	c.mu.Lock()
	if len(values) > len(c.values) {
		c.mu.Unlock()

		return fmt.Errorf("array of %d values too long for control %s", len(values), c.name)
	}

	for _, v := range values {
		if v < c.min || v > c.max {
			c.mu.Unlock()

			return fmt.Errorf("value %d out of range [%d, %d] for control %s", v, c.min, c.max, c.name)
		}
	}

	copy(c.values, values)
	for i := len(values); i < len(c.values); i++ {
		c.values[i] = c.min
	}
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(c)
	}

	return nil
}

// IEC958 returns the channel status of an IEC958 control.
func (c *Control) IEC958() (ChannelStatus, error) {
	if c == nil {
		return ChannelStatus{}, fmt.Errorf("control is nil")
	}

	if c.ctlType != CTL_TYPE_IEC958 {
		return ChannelStatus{}, fmt.Errorf("control %s is not IEC958", c.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.iec, nil
}

// SetIEC958 replaces the channel status of an IEC958 control.
func (c *Control) SetIEC958(cs ChannelStatus) error {
	if c == nil {
		return fmt.Errorf("control is nil")
	}

	if c.ctlType != CTL_TYPE_IEC958 {
		return fmt.Errorf("control %s is not IEC958", c.name)
	}

	c.mu.Lock()
	c.iec = cs
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(c)
	}

	return nil
}
