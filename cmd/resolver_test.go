package cmd

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/warpdl/warpops/pkg/warpops"
)

type fakeHolder struct {
	holds, releases int
}

func (f *fakeHolder) hold()    { f.holds++ }
func (f *fakeHolder) release() { f.releases++ }

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		in     string
		policy warpops.ConflictPolicy
		all    bool
	}{
		{"o", warpops.ConflictOverwrite, false},
		{"overwrite", warpops.ConflictOverwrite, false},
		{"O", warpops.ConflictOverwrite, true},
		{"r", warpops.ConflictRename, false},
		{"R", warpops.ConflictRename, true},
		{"s", warpops.ConflictSkip, false},
		{"S", warpops.ConflictSkip, true},
		{"", warpops.ConflictSkip, false},
		{"whatever", warpops.ConflictSkip, false},
	}
	for _, tt := range tests {
		policy, all := parseAnswer(tt.in)
		if policy != tt.policy || all != tt.all {
			t.Errorf("parseAnswer(%q) = %s, %v; want %s, %v", tt.in, policy, all, tt.policy, tt.all)
		}
	}
}

func TestPromptResolver(t *testing.T) {
	var out strings.Builder
	h := &fakeHolder{}
	p := newPromptResolver(strings.NewReader("o\nR\n"), &out, h)
	info := warpops.ConflictInfo{Destination: "/dst/a.txt"}
	ctx := context.Background()

	if got := p.ResolveConflict(ctx, info); got != warpops.ConflictOverwrite {
		t.Fatalf("first answer = %s", got)
	}
	if got := p.ResolveConflict(ctx, info); got != warpops.ConflictRename {
		t.Fatalf("second answer = %s", got)
	}
	// "R" applies to every later conflict without asking
	if got := p.ResolveConflict(ctx, info); got != warpops.ConflictRename {
		t.Fatalf("remembered answer = %s", got)
	}
	if n := strings.Count(out.String(), "/dst/a.txt already exists"); n != 2 {
		t.Fatalf("prompted %d times:\n%s", n, out.String())
	}
	if h.holds != 2 || h.releases != 2 {
		t.Fatalf("holds=%d releases=%d", h.holds, h.releases)
	}
}

func TestPromptResolver_Skips(t *testing.T) {
	info := warpops.ConflictInfo{Destination: "/x"}
	p := newPromptResolver(strings.NewReader(""), &strings.Builder{}, nil)
	if got := p.ResolveConflict(context.Background(), info); got != warpops.ConflictSkip {
		t.Fatalf("closed input = %s", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out strings.Builder
	p = newPromptResolver(strings.NewReader("o\n"), &out, nil)
	if got := p.ResolveConflict(ctx, info); got != warpops.ConflictSkip {
		t.Fatalf("canceled group = %s", got)
	}
	if out.Len() != 0 {
		t.Fatalf("prompted for a canceled group: %q", out.String())
	}
}

func TestPromptResolver_CancelWhileWaiting(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := newPromptResolver(pr, &strings.Builder{}, nil)
	info := warpops.ConflictInfo{Destination: "/x"}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan warpops.ConflictPolicy, 1)
	go func() { got <- p.ResolveConflict(ctx, info) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case policy := <-got:
		if policy != warpops.ConflictSkip {
			t.Fatalf("canceled prompt = %s", policy)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt kept waiting for input after cancel")
	}

	// the next prompt still gets the next line
	go pw.Write([]byte("r\n"))
	if policy := p.ResolveConflict(context.Background(), info); policy != warpops.ConflictRename {
		t.Fatalf("answer after a canceled prompt = %s", policy)
	}
}
