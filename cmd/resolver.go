package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/warpdl/warpops/pkg/warpops"
)

// promptInput is where conflict answers are read from.
var promptInput io.Reader = os.Stdin

// terminalHolder is the part of the renderer a prompt needs.
type terminalHolder interface {
	hold()
	release()
}

// promptResolver asks on the terminal what to do with an existing
// destination. An upper-case answer applies to every later conflict.
// Input is read on its own goroutine so a canceled prompt returns at once.
type promptResolver struct {
	in    io.Reader
	out   io.Writer
	term  terminalHolder
	start sync.Once
	lines chan string

	mu  sync.Mutex
	all warpops.ConflictPolicy
}

func newPromptResolver(in io.Reader, out io.Writer, term terminalHolder) *promptResolver {
	return &promptResolver{
		in:    in,
		out:   out,
		term:  term,
		lines: make(chan string),
	}
}

// readLines feeds lines until the input ends.
func (p *promptResolver) readLines() {
	defer close(p.lines)
	r := bufio.NewReader(p.in)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			p.lines <- line
		}
		if err != nil {
			return
		}
	}
}

func (p *promptResolver) ResolveConflict(ctx context.Context, c warpops.ConflictInfo) warpops.ConflictPolicy {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.all != warpops.ConflictAsk {
		return p.all
	}
	if ctx.Err() != nil {
		return warpops.ConflictSkip
	}
	if p.term != nil {
		p.term.hold()
		defer p.term.release()
	}
	fmt.Fprintf(p.out, "\n%s already exists. [o]verwrite, [s]kip or [r]ename? (O/S/R for all): ", c.Destination)
	p.start.Do(func() { go p.readLines() })
	var line string
	select {
	case l, ok := <-p.lines:
		if !ok {
			return warpops.ConflictSkip
		}
		line = l
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return warpops.ConflictSkip
	}
	policy, all := parseAnswer(strings.TrimSpace(line))
	if all {
		p.all = policy
	}
	return policy
}

// parseAnswer maps a prompt answer to a policy. Anything unrecognized
// skips.
func parseAnswer(s string) (policy warpops.ConflictPolicy, all bool) {
	switch s {
	case "o", "overwrite":
		return warpops.ConflictOverwrite, false
	case "O":
		return warpops.ConflictOverwrite, true
	case "r", "rename":
		return warpops.ConflictRename, false
	case "R":
		return warpops.ConflictRename, true
	case "S":
		return warpops.ConflictSkip, true
	default:
		return warpops.ConflictSkip, false
	}
}
