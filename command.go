package aio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// CommandHandler receives the integer arguments of one command line.
type CommandHandler func(args []int) error

type command struct {
	arity   int
	handler CommandHandler
	help    string
}

// CommandTable interprets "name N integers" lines, the debug interface of the audio block.
type CommandTable struct {
	mu   sync.RWMutex
	cmds map[string]command
}

// NewCommandTable returns an empty table.
func NewCommandTable() *CommandTable {
	return &CommandTable{cmds: make(map[string]command)}
}

// Register adds a command taking exactly arity integers. A negative arity accepts any count.
func (t *CommandTable) Register(name string, arity int, help string, h CommandHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cmds[name] = command{arity: arity, handler: h, help: help}
}

// Names returns the registered command names, sorted.
func (t *CommandTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.cmds))
	for name := range t.cmds {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Help returns the help line of a command.
func (t *CommandTable) Help(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.cmds[name].help
}

// Exec parses and runs one line. Arguments accept decimal, 0x hex and 0 octal notation.
func (t *CommandTable) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	t.mu.RLock()
	cmd, ok := t.cmds[fields[0]]
	t.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s: %w", fields[0], ErrUnknownCommand)
	}

	args := make([]int, 0, len(fields)-1)
	for _, f := range fields[1:] {
		v, err := strconv.ParseInt(f, 0, 64)
		if err != nil {
			return fmt.Errorf("%s: bad argument %q: %w", fields[0], f, err)
		}

		args = append(args, int(v))
	}

	if cmd.arity >= 0 && len(args) != cmd.arity {
		return fmt.Errorf("%s: want %d arguments, got %d", fields[0], cmd.arity, len(args))
	}

	return cmd.handler(args)
}
