package commands

import "strings"

type tableKey struct {
	namespace string
	command   string
}

// Table maps (namespace, command) pairs to handlers. Both command surfaces
// normalise into Request and resolve through the same lookup. A Table is
// built once at startup and read concurrently afterwards.
type Table[H any] struct {
	handlers map[tableKey]H
}

// NewTable creates an empty table.
func NewTable[H any]() *Table[H] {
	return &Table[H]{handlers: make(map[tableKey]H)}
}

// Register binds handler to namespace/command, replacing any previous
// binding.
func (t *Table[H]) Register(namespace, command string, handler H) {
	t.handlers[tableKey{namespace: strings.ToLower(namespace), command: strings.ToLower(command)}] = handler
}

// Lookup returns the handler for the request's namespace and command.
func (t *Table[H]) Lookup(req Request) (H, bool) {
	h, ok := t.handlers[tableKey{namespace: strings.ToLower(req.Namespace), command: strings.ToLower(req.Command)}]
	return h, ok
}
