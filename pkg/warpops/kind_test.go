package warpops

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(" " + name + " ")
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", name, got, err)
		}
	}
	if got, err := ParseKind("COPY"); err != nil || got != KindCopy {
		t.Errorf("ParseKind is case insensitive, got %v, %v", got, err)
	}
	if _, err := ParseKind("teleport"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestKind_Category(t *testing.T) {
	tests := map[Kind]Category{
		KindCopy:       CategoryIO,
		KindMove:       CategoryIO,
		KindTrash:      CategoryIO,
		KindDelete:     CategoryIO,
		KindPreload:    CategoryIO,
		KindCompress:   CategoryCPU,
		KindExtract:    CategoryCPU,
		KindLink:       CategoryLight,
		KindHardlink:   CategoryLight,
		KindCreateFile: CategoryLight,
		KindCreateDir:  CategoryLight,
		KindRename:     CategoryLight,
	}
	for k, want := range tests {
		if got := k.Category(); got != want {
			t.Errorf("%s.Category() = %s, want %s", k, got, want)
		}
	}
}

func TestState_Transitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateCanceled, true},
		{StatePending, StateSucceeded, false},
		{StateRunning, StatePaused, true},
		{StateRunning, StateFailed, true},
		{StatePaused, StateRunning, true},
		{StatePaused, StateCanceled, true},
		{StatePaused, StateSucceeded, false},
		{StateSucceeded, StateRunning, false},
		{StateCanceled, StatePending, false},
	}
	for _, tt := range tests {
		if got := tt.from.canTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	for _, s := range []State{StateSucceeded, StateFailed, StateCanceled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestTextEncodings(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("create_dir")); err != nil || k != KindCreateDir {
		t.Errorf("kind: %v %v", k, err)
	}
	var c Category
	if err := c.UnmarshalText([]byte("cpu")); err != nil || c != CategoryCPU {
		t.Errorf("category: %v %v", c, err)
	}
	var s State
	if err := s.UnmarshalText([]byte("paused")); err != nil || s != StatePaused {
		t.Errorf("state: %v %v", s, err)
	}
	var p ConflictPolicy
	if err := p.UnmarshalText([]byte("rename")); err != nil || p != ConflictRename {
		t.Errorf("policy: %v %v", p, err)
	}
	if err := p.UnmarshalText([]byte("")); err != nil || p != ConflictAsk {
		t.Errorf("empty policy should mean ask: %v %v", p, err)
	}
	if err := p.UnmarshalText([]byte("maybe")); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}
