package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/cmd/common"
	"github.com/warpdl/warpops/pkg/warpcli"
	"github.com/warpdl/warpops/pkg/warpops"
)

var (
	statusFlags = append([]cli.Flag{
		cli.BoolFlag{
			Name:  "tasks, t",
			Usage: "include every task of the group",
		},
	}, remoteFlags...)

	cancelFlags = append([]cli.Flag{
		cli.BoolFlag{
			Name:  "task, t",
			Usage: "treat the argument as a task id and cancel only that task",
		},
	}, remoteFlags...)
)

const rpcTimeout = 10 * time.Second

// connectDaemon connects to a running daemon. It never spawns one: the
// group commands only make sense for a daemon that already has groups.
func connectDaemon(ctx *cli.Context) (*warpcli.Client, error) {
	s, err := loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	s.applyRemoteFlags(ctx)
	cctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	client, err := warpcli.NewClient(cctx, &warpcli.Options{URI: s.DaemonURI, Secret: s.Secret})
	if err != nil {
		return nil, err
	}
	client.CheckVersionMismatch(cctx, os.Stderr, currentBuildArgs.Version)
	return client, nil
}

func listGroups(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := connectDaemon(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "new_client", err)
		return nil
	}
	defer client.Close()
	cctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	l, err := client.List(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "get_list", err)
		return nil
	}
	printGroups(os.Stdout, l.Groups)
	return nil
}

func printGroups(w io.Writer, groups []warpops.Snapshot) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "warpops: no operations found")
		return
	}
	txt := "Here are your operations:"
	txt += "\n\n----------------------------------------------------------------------------"
	txt += "\n|                Group                 | Progress |  Done  | Failed | Status |"
	txt += "\n|--------------------------------------|----------|--------|--------|--------|"
	for _, g := range groups {
		perc := "?"
		if f := g.Progress.Fraction(); f >= 0 {
			perc = fmt.Sprintf("%d%%", int(f*100))
		}
		txt += fmt.Sprintf("\n| %s | %s | %s | %s | %s |",
			g.Group,
			common.Beaut(perc, 8),
			common.Beaut(strconv.Itoa(g.Succeeded), 6),
			common.Beaut(strconv.Itoa(g.Failed), 6),
			common.Beaut(groupStatus(g), 6),
		)
	}
	txt += "\n----------------------------------------------------------------------------"
	fmt.Fprintln(w, txt)
}

func groupStatus(g warpops.Snapshot) string {
	switch {
	case g.Completed && g.Failed > 0:
		return "failed"
	case g.Completed && g.Canceled > 0:
		return "cancel"
	case g.Completed:
		return "done"
	case g.CancelRequested:
		return "cancel"
	case g.Paused:
		return "paused"
	case g.Running > 0:
		return "active"
	default:
		return "queued"
	}
}

func status(ctx *cli.Context) error {
	gid := ctx.Args().First()
	if gid == "" || gid == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := connectDaemon(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "new_client", err)
		return nil
	}
	defer client.Close()
	cctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	res, err := client.Snapshot(cctx, warpops.GroupID(gid), ctx.Bool("tasks"))
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "snapshot", err)
		return nil
	}
	printStatus(os.Stdout, res.Snapshot, res.Tasks)
	return nil
}

func printStatus(w io.Writer, snap warpops.Snapshot, tasks []warpops.TaskInfo) {
	total := "unknown"
	if snap.Progress.TotalBytes >= 0 {
		total = humanBytes(snap.Progress.TotalBytes)
	}
	fmt.Fprintf(w, "Group:     %s\n", snap.Group)
	fmt.Fprintf(w, "Status:    %s\n", groupStatus(snap))
	fmt.Fprintf(w, "Progress:  %s of %s\n", humanBytes(snap.Progress.ProcessedBytes), total)
	fmt.Fprintf(w, "Tasks:     %d succeeded, %d failed, %d canceled, %d running, %d pending\n",
		snap.Succeeded, snap.Failed, snap.Canceled, snap.Running, snap.Pending)
	fmt.Fprintf(w, "Created:   %s\n", snap.CreatedAt.Local().Format(time.DateTime))
	for _, f := range snap.Failures {
		fmt.Fprintf(w, "Failure:   task %d %s %s: %s: %s\n", f.Task, f.Kind, f.Path, f.Error, f.Message)
	}
	for _, t := range tasks {
		path := t.Destination
		if len(t.Sources) > 0 {
			path = t.Sources[0]
		}
		fmt.Fprintf(w, "  %6d %-10s %-9s %s\n", t.ID, t.Kind, t.State, path)
	}
}

// groupControl runs a per-group daemon call on the first argument.
func groupControl(name string, call func(context.Context, *warpcli.Client, warpops.GroupID) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		arg := ctx.Args().First()
		if arg == "" || arg == "help" {
			return cli.ShowCommandHelp(ctx, ctx.Command.Name)
		}
		client, err := connectDaemon(ctx)
		if err != nil {
			common.PrintRuntimeErr(ctx, name, "new_client", err)
			return nil
		}
		defer client.Close()
		cctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		defer cancel()
		if err := call(cctx, client, warpops.GroupID(arg)); err != nil {
			common.PrintRuntimeErr(ctx, name, "call", err)
			return nil
		}
		fmt.Printf("%s: %s\n", name, arg)
		return nil
	}
}

var (
	pauseGroup = groupControl("pause", func(ctx context.Context, c *warpcli.Client, id warpops.GroupID) error {
		return c.Pause(ctx, id)
	})
	resumeGroup = groupControl("resume", func(ctx context.Context, c *warpcli.Client, id warpops.GroupID) error {
		return c.Resume(ctx, id)
	})
	ackGroup = groupControl("ack", func(ctx context.Context, c *warpcli.Client, id warpops.GroupID) error {
		return c.Acknowledge(ctx, id)
	})
)

func cancelGroup(ctx *cli.Context) error {
	if !ctx.Bool("task") {
		return groupControl("cancel", func(cctx context.Context, c *warpcli.Client, id warpops.GroupID) error {
			return c.Cancel(cctx, id)
		})(ctx)
	}
	return groupControl("cancel", func(cctx context.Context, c *warpcli.Client, id warpops.GroupID) error {
		n, err := strconv.ParseUint(string(id), 10, 64)
		if err != nil {
			return errors.New("task ids are numbers")
		}
		return c.CancelTask(cctx, warpops.TaskID(n))
	})(ctx)
}
