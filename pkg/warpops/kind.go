package warpops

import (
	"fmt"
	"strings"
)

// Kind identifies the operation a task performs.
type Kind int

const (
	KindCopy Kind = iota + 1
	KindMove
	KindTrash
	KindDelete
	KindLink
	KindHardlink
	KindCreateFile
	KindCreateDir
	KindRename
	KindCompress
	KindExtract
	KindPreload
)

var kindNames = map[Kind]string{
	KindCopy:       "copy",
	KindMove:       "move",
	KindTrash:      "trash",
	KindDelete:     "delete",
	KindLink:       "link",
	KindHardlink:   "hardlink",
	KindCreateFile: "create_file",
	KindCreateDir:  "create_dir",
	KindRename:     "rename",
	KindCompress:   "compress",
	KindExtract:    "extract",
	KindPreload:    "preload",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a kind name (as produced by Kind.String) back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Category is the resource class a task competes in. Each category has its
// own concurrency limit.
type Category int

const (
	CategoryIO Category = iota
	CategoryCPU
	CategoryLight
)

// Categories lists every category in dispatch-loop order.
var Categories = []Category{CategoryIO, CategoryCPU, CategoryLight}

func (c Category) String() string {
	switch c {
	case CategoryIO:
		return "io"
	case CategoryCPU:
		return "cpu"
	case CategoryLight:
		return "light"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// State is the lifecycle state of a task.
type State int

const (
	StatePending State = iota
	StateRunning
	StatePaused
	StateSucceeded
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCanceled
}

// canTransition encodes the forward-only lifecycle:
// Pending -> Running -> {Succeeded, Failed, Canceled}, Running <-> Paused,
// and Pending/Paused -> Canceled.
func (s State) canTransition(to State) bool {
	switch s {
	case StatePending:
		return to == StateRunning || to == StateCanceled
	case StateRunning:
		return to == StatePaused || to.Terminal()
	case StatePaused:
		return to == StateRunning || to == StateCanceled
	default:
		return false
	}
}

// LinkKind selects between symbolic and hard links.
type LinkKind int

const (
	LinkSymbolic LinkKind = iota
	LinkHard
)

func (l LinkKind) String() string {
	if l == LinkHard {
		return "hard"
	}
	return "symbolic"
}

// ConflictPolicy tells a handler what to do when its destination exists.
type ConflictPolicy int

const (
	// ConflictAsk fails the task with ErrKindConflict so the engine can ask
	// the ConflictResolver.
	ConflictAsk ConflictPolicy = iota
	ConflictOverwrite
	ConflictSkip
	ConflictRename
)

var conflictNames = map[ConflictPolicy]string{
	ConflictAsk:       "ask",
	ConflictOverwrite: "overwrite",
	ConflictSkip:      "skip",
	ConflictRename:    "rename",
}

func (p ConflictPolicy) String() string {
	if s, ok := conflictNames[p]; ok {
		return s
	}
	return fmt.Sprintf("conflict(%d)", int(p))
}

// ParseConflictPolicy parses "ask", "overwrite", "skip" or "rename".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ConflictAsk, nil
	}
	for p, name := range conflictNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown conflict policy %q", ErrInvalidRequest, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p ConflictPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ConflictPolicy) UnmarshalText(b []byte) error {
	v, err := ParseConflictPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	for _, v := range Categories {
		if v.String() == string(b) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, b)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for v := StatePending; v <= StateCanceled; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Category returns the resource class the kind is dispatched in.
func (k Kind) Category() Category {
	switch k {
	case KindCompress, KindExtract:
		return CategoryCPU
	case KindLink, KindHardlink, KindCreateFile, KindCreateDir, KindRename:
		return CategoryLight
	default:
		return CategoryIO
	}
}
