package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli"
	"github.com/warpdl/warpops/cmd/common"
	"github.com/warpdl/warpops/internal/fsadaptor"
	"github.com/warpdl/warpops/internal/trash"
	"github.com/warpdl/warpops/pkg/logger"
	"github.com/warpdl/warpops/pkg/warpcli"
	"github.com/warpdl/warpops/pkg/warpops"
)

// argShape is how the positional arguments of an operation map onto
// requests.
type argShape int

const (
	// <sources...> <destination>
	shapeSourcesDest argShape = iota
	// <paths...>, each one a source
	shapeSources
	// <paths...>, each one the destination of its own request
	shapeDests
)

type opSpec struct {
	name    string
	aliases []string
	usage   string
	kind    warpops.Kind
	shape   argShape
	example string
}

var opSpecs = []opSpec{
	{"copy", []string{"cp"}, "copy files and directories", warpops.KindCopy, shapeSourcesDest, "notes.txt photos/ /mnt/backup/"},
	{"move", []string{"mv"}, "move files and directories", warpops.KindMove, shapeSourcesDest, "draft.md archive/"},
	{"delete", []string{"rm"}, "delete files and directories permanently", warpops.KindDelete, shapeSources, "build/ old.log"},
	{"link", []string{"ln"}, "create symbolic links", warpops.KindLink, shapeSourcesDest, "/opt/tool/bin/tool ~/bin/tool"},
	{"hardlink", nil, "create hard links", warpops.KindHardlink, shapeSourcesDest, "data.bin data.bin.bak"},
	{"touch", nil, "create empty files", warpops.KindCreateFile, shapeDests, "a.txt b.txt"},
	{"mkdir", nil, "create directories", warpops.KindCreateDir, shapeDests, "out/logs"},
	{"rename", nil, "rename a file or directory", warpops.KindRename, shapeSourcesDest, "report.txt report-final.txt"},
	{"compress", []string{"zip"}, "pack files and directories into a zip archive", warpops.KindCompress, shapeSourcesDest, "src/ README.md release.zip"},
	{"extract", []string{"unzip"}, "unpack a zip archive into a directory", warpops.KindExtract, shapeSourcesDest, "release.zip out/"},
	{"preload", nil, "read files to warm the page cache", warpops.KindPreload, shapeSources, "dataset/"},
}

var trashSpec = opSpec{"trash", nil, "move files into the trash bin", warpops.KindTrash, shapeSources, "old/"}

func (s opSpec) argsUsage() string {
	switch s.shape {
	case shapeSources, shapeDests:
		return "[flags] <paths...>"
	default:
		if s.kind == warpops.KindExtract {
			return "[flags] <archive> <directory>"
		}
		return "[flags] <sources...> <destination>"
	}
}

var remoteFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "daemon-uri, u",
		Usage: "daemon to connect to (unix://, tcp:// or pipe://)",
	},
	cli.StringFlag{
		Name:  "secret",
		Usage: "bearer token of the daemon",
	},
}

var opFlags = append([]cli.Flag{
	cli.IntFlag{
		Name:  "priority, p",
		Usage: "scheduling priority, higher runs first",
	},
	cli.StringFlag{
		Name:  "on-conflict, c",
		Usage: "what to do when a destination exists: ask, overwrite, skip or rename",
		Value: "ask",
	},
	cli.BoolFlag{
		Name:  "abort-on-failure, a",
		Usage: "cancel the rest of the operation after the first failure",
	},
	cli.BoolFlag{
		Name:  "remote, r",
		Usage: "run the operation on the daemon",
	},
	cli.BoolFlag{
		Name:  "detach, d",
		Usage: "with --remote, print the group id and return without waiting",
	},
	cli.BoolFlag{
		Name:  "quiet, q",
		Usage: "do not show progress bars",
	},
	cli.StringFlag{
		Name:  "at",
		Usage: "hand the operation to the daemon to start at this time (15:04, 2006-01-02 15:04 or RFC 3339)",
	},
	cli.StringFlag{
		Name:  "in",
		Usage: "hand the operation to the daemon to start after this long (30m, 2h, 1h30m)",
	},
	cli.StringFlag{
		Name:  "cron",
		Usage: "hand the operation to the daemon to run on this cron schedule",
	},
}, remoteFlags...)

func opCommands() []cli.Command {
	cmds := make([]cli.Command, 0, len(opSpecs))
	for _, s := range opSpecs {
		cmds = append(cmds, cli.Command{
			Name:                   s.name,
			Aliases:                s.aliases,
			Usage:                  s.usage,
			UsageText:              s.argsUsage(),
			Description:            fmt.Sprintf(OpDescription, s.name, s.argsUsage(), s.example),
			CustomHelpTemplate:     CMD_HELP_TEMPL,
			OnUsageError:           common.UsageErrorCallback,
			Action:                 opAction(s),
			Flags:                  opFlags,
			UseShortOptionHandling: true,
		})
	}
	return cmds
}

// opOptions are the per-invocation flags of an operation command.
type opOptions struct {
	Priority       int
	OnConflict     warpops.ConflictPolicy
	AbortOnFailure *bool
	Remote         bool
	Detach         bool
	Quiet          bool
	// At and Cron defer the operation to the daemon's scheduler.
	At   time.Time
	Cron string
}

func (o *opOptions) scheduled() bool {
	return !o.At.IsZero() || o.Cron != ""
}

func parseOpOptions(ctx *cli.Context) (*opOptions, error) {
	policy, err := warpops.ParseConflictPolicy(ctx.String("on-conflict"))
	if err != nil {
		return nil, err
	}
	o := &opOptions{
		Priority:   ctx.Int("priority"),
		OnConflict: policy,
		Remote:     ctx.Bool("remote"),
		Detach:     ctx.Bool("detach"),
		Quiet:      ctx.Bool("quiet"),
	}
	if ctx.IsSet("abort-on-failure") {
		v := ctx.Bool("abort-on-failure")
		o.AbortOnFailure = &v
	}
	if o.Detach && !o.Remote {
		return nil, errors.New("--detach requires --remote")
	}
	if o.At, err = startTime(ctx.String("at"), ctx.String("in"), time.Now()); err != nil {
		return nil, err
	}
	o.Cron = strings.TrimSpace(ctx.String("cron"))
	return o, nil
}

// buildRequests turns the positional arguments into requests of one group.
// Paths are made absolute since a daemon does not share the working
// directory.
func buildRequests(spec opSpec, args []string, o *opOptions, gid warpops.GroupID) ([]warpops.Request, error) {
	if len(args) == 0 {
		return nil, errors.New("no paths given")
	}
	abs := make([]string, len(args))
	for i, a := range args {
		p, err := filepath.Abs(a)
		if err != nil {
			return nil, err
		}
		abs[i] = p
	}
	base := warpops.Request{
		Kind:           spec.kind,
		Priority:       o.Priority,
		Group:          gid,
		AbortOnFailure: o.AbortOnFailure,
		OnConflict:     o.OnConflict,
	}
	switch spec.shape {
	case shapeSources:
		base.Sources = abs
		return []warpops.Request{base}, nil
	case shapeDests:
		reqs := make([]warpops.Request, 0, len(abs))
		for _, p := range abs {
			r := base
			r.Destination = p
			reqs = append(reqs, r)
		}
		return reqs, nil
	default:
		if len(abs) < 2 {
			return nil, fmt.Errorf("%s needs a source and a destination", spec.name)
		}
		if (spec.kind == warpops.KindRename || spec.kind == warpops.KindExtract) && len(abs) != 2 {
			return nil, fmt.Errorf("%s takes exactly one source", spec.name)
		}
		base.Sources = abs[:len(abs)-1]
		base.Destination = abs[len(abs)-1]
		return []warpops.Request{base}, nil
	}
}

func opAction(spec opSpec) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if ctx.Args().First() == "help" {
			return cli.ShowCommandHelp(ctx, ctx.Command.Name)
		}
		o, err := parseOpOptions(ctx)
		if err != nil {
			return common.PrintErrWithCmdHelp(ctx, err)
		}
		gid := warpops.GroupID(uuid.NewString())
		reqs, err := buildRequests(spec, ctx.Args(), o, gid)
		if err != nil {
			return common.PrintErrWithCmdHelp(ctx, err)
		}
		s, err := loadSettings(ctx)
		if err != nil {
			common.PrintRuntimeErr(ctx, spec.name, "load_config", err)
			return nil
		}
		if o.scheduled() {
			s.applyRemoteFlags(ctx)
			if err := runScheduled(s, reqs, o); err != nil {
				common.PrintRuntimeErr(ctx, spec.name, "schedule", err)
			}
			return nil
		}
		var snap warpops.Snapshot
		if o.Remote {
			s.applyRemoteFlags(ctx)
			snap, err = runRemote(s, spec, reqs, o)
		} else {
			snap, err = runLocal(s, spec, reqs, o)
		}
		if err != nil {
			common.PrintRuntimeErr(ctx, spec.name, "run", err)
			return nil
		}
		if o.Detach {
			fmt.Println(gid)
			return nil
		}
		printSummary(os.Stdout, spec.name, snap)
		if failedUnresolved(snap) {
			return cli.NewExitError("", 1)
		}
		return nil
	}
}

func (s *settings) applyRemoteFlags(ctx *cli.Context) {
	if v := ctx.String("daemon-uri"); v != "" {
		s.DaemonURI = v
	}
	if v := ctx.String("secret"); v != "" {
		s.Secret = v
	}
	s.lookupSecret()
}

func cliLogger(s *settings) logger.Logger {
	if !s.Debug {
		return logger.NewNopLogger()
	}
	l := logger.NewStandardLogger(log.New(os.Stderr, "", log.LstdFlags))
	l.SetDebug(true)
	return l
}

// runLocal runs reqs on an in-process engine and waits for the group.
func runLocal(s *settings, spec opSpec, reqs []warpops.Request, o *opOptions) (warpops.Snapshot, error) {
	l := cliLogger(s)
	opts := []fsadaptor.Option{fsadaptor.WithLogger(l), fsadaptor.WithChunkSize(int(s.Engine.ChunkSize))}
	if spec.kind == warpops.KindTrash {
		bin, err := trash.Open(fsadaptor.NewOS().Fs(), s.TrashDir, s.trashIndex())
		if err != nil {
			return warpops.Snapshot{}, err
		}
		defer bin.Close()
		opts = append(opts, fsadaptor.WithTrash(bin))
	}

	r := newRenderer(os.Stdout, spec.name, o.Quiet)
	// a local run shows the group until it ends
	s.Engine.Retention = 0
	e, err := warpops.New(context.Background(), s.Engine, fsadaptor.NewOS(opts...),
		warpops.WithLogger(l),
		warpops.WithNotifier(warpops.MultiNotifier{r, warpops.NewLogNotifier(l)}),
		warpops.WithResolver(newPromptResolver(promptInput, os.Stderr, r)),
	)
	if err != nil {
		return warpops.Snapshot{}, err
	}
	defer e.Close()

	gid := reqs[0].Group
	for _, req := range reqs {
		if _, _, err := e.Submit(req); err != nil {
			e.Cancel(gid)
			r.abort()
			return warpops.Snapshot{}, err
		}
	}

	sigCtx, stop := setupShutdownHandler()
	defer stop()
	go func() {
		<-sigCtx.Done()
		e.Cancel(gid)
	}()
	snap, err := e.Wait(context.Background(), gid)
	if err != nil {
		r.abort()
		return snap, err
	}
	r.finish(snap)
	return snap, nil
}

// snapshotPollInterval is how often a remote run checks the group in case
// a completion push was missed.
const snapshotPollInterval = 2 * time.Second

// runRemote submits reqs to the daemon and follows the group through its
// pushed events.
func runRemote(s *settings, spec opSpec, reqs []warpops.Request, o *opOptions) (warpops.Snapshot, error) {
	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := warpcli.NewClient(cctx, &warpcli.Options{
		URI:    s.DaemonURI,
		Secret: s.Secret,
		Spawn:  true,
	})
	if err != nil {
		return warpops.Snapshot{}, err
	}
	defer client.Close()
	client.CheckVersionMismatch(cctx, os.Stderr, currentBuildArgs.Version)

	gid := reqs[0].Group
	r := newRenderer(os.Stdout, spec.name, o.Quiet || o.Detach)
	done := make(chan warpops.Snapshot, 1)
	if !o.Detach {
		followGroup(client, gid, r, done)
	}
	for _, req := range reqs {
		if _, err := client.Submit(cctx, &req); err != nil {
			if len(reqs) > 1 {
				client.Cancel(context.Background(), gid)
			}
			r.abort()
			return warpops.Snapshot{}, err
		}
	}
	if o.Detach {
		r.abort()
		return warpops.Snapshot{Group: gid}, nil
	}

	sigCtx, stop := setupShutdownHandler()
	defer stop()
	snap, err := waitRemote(sigCtx, client, gid, done)
	if err != nil {
		r.abort()
		return snap, err
	}
	r.finish(snap)
	if err := client.Acknowledge(context.Background(), gid); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return snap, nil
}

// followGroup feeds the group's pushed snapshots into r and its completion
// into done.
func followGroup(client *warpcli.Client, gid warpops.GroupID, r *renderer, done chan<- warpops.Snapshot) {
	client.AddHandler(warpops.EventGroupSnapshot, &warpcli.GroupFilter{
		Group: gid,
		Next: warpcli.NewEventHandler(func(ev warpops.GroupSnapshotEvent) error {
			r.Notify(ev)
			return nil
		}),
	})
	client.AddHandler(warpops.EventGroupCompleted, &warpcli.GroupFilter{
		Group: gid,
		Next: warpcli.NewEventHandler(func(ev warpops.GroupCompletedEvent) error {
			select {
			case done <- ev.Snapshot:
			default:
			}
			return nil
		}),
	})
}

// waitRemote waits for the group's completion. A canceled ctx cancels the
// group on the daemon and keeps waiting for it to wind down.
func waitRemote(ctx context.Context, client *warpcli.Client, gid warpops.GroupID, done <-chan warpops.Snapshot) (warpops.Snapshot, error) {
	ticker := time.NewTicker(snapshotPollInterval)
	defer ticker.Stop()
	sig := ctx.Done()
	for {
		select {
		case snap := <-done:
			return snap, nil
		case <-sig:
			sig = nil
			if err := client.Cancel(context.Background(), gid); err != nil {
				return warpops.Snapshot{}, err
			}
		case <-ticker.C:
			res, err := client.Snapshot(context.Background(), gid, false)
			if err != nil {
				return warpops.Snapshot{}, err
			}
			if res.Completed {
				return res.Snapshot, nil
			}
		}
	}
}

func printSummary(w io.Writer, name string, snap warpops.Snapshot) {
	fmt.Fprintf(w, "%s: %d succeeded, %d failed, %d canceled (%s)\n",
		name, snap.Succeeded, snap.Failed, snap.Canceled, humanBytes(snap.Progress.ProcessedBytes))
	for _, f := range snap.Failures {
		if f.Resolution != warpops.ConflictAsk {
			fmt.Fprintf(w, "  %s %s: exists, resolved as %s\n", f.Kind, f.Path, f.Resolution)
			continue
		}
		fmt.Fprintf(w, "  %s %s: %s: %s\n", f.Kind, f.Path, f.Error, f.Message)
	}
}

// failedUnresolved reports whether a failure remains that the user did not
// settle by answering a conflict prompt.
func failedUnresolved(snap warpops.Snapshot) bool {
	return snap.Failed > snap.Resolved
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
