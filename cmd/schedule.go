package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/cmd/common"
	"github.com/warpdl/warpops/internal/scheduler"
	"github.com/warpdl/warpops/pkg/warpcli"
	"github.com/warpdl/warpops/pkg/warpops"
)

// atLayouts are the accepted --at formats, tried in order.
var atLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

// parseAt reads a --at value in local time. A bare clock time means its
// next occurrence after now.
func parseAt(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range atLayouts {
		if t, err := time.ParseInLocation(layout, v, now.Location()); err == nil {
			return t, nil
		}
	}
	c, err := time.ParseInLocation("15:04", v, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at time %q", v)
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), c.Hour(), c.Minute(), 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

// startTime resolves the --at and --in flags, which exclude each other.
// Both empty gives the zero time.
func startTime(at, in string, now time.Time) (time.Time, error) {
	switch {
	case at != "" && in != "":
		return time.Time{}, errors.New("--at and --in are mutually exclusive")
	case at != "":
		return parseAt(at, now)
	case in != "":
		d, err := time.ParseDuration(strings.TrimSpace(in))
		if err != nil || d < 0 {
			return time.Time{}, fmt.Errorf("invalid --in duration %q, expected a form like 30m, 2h or 1h30m", in)
		}
		return now.Add(d), nil
	}
	return time.Time{}, nil
}

// runScheduled hands reqs to the daemon's scheduler. Each request becomes
// an entry of its own.
func runScheduled(s *settings, reqs []warpops.Request, o *opOptions) error {
	cctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	client, err := warpcli.NewClient(cctx, &warpcli.Options{
		URI:    s.DaemonURI,
		Secret: s.Secret,
		Spawn:  true,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	client.CheckVersionMismatch(cctx, os.Stderr, currentBuildArgs.Version)
	for i := range reqs {
		e, err := client.Schedule(cctx, &reqs[i], o.At, o.Cron)
		if err != nil {
			return err
		}
		fmt.Printf("Scheduled %s at %s\n", e.ID, e.TriggerAt.Local().Format(time.DateTime))
	}
	return nil
}

func listSchedules(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := connectDaemon(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "schedules", "new_client", err)
		return nil
	}
	defer client.Close()
	cctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	res, err := client.Schedules(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "schedules", "get_list", err)
		return nil
	}
	printSchedules(os.Stdout, res.Entries)
	return nil
}

func printSchedules(w io.Writer, entries []scheduler.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "warpops: nothing is scheduled")
		return
	}
	txt := "Scheduled operations:"
	txt += "\n\n-------------------------------------------------------------------------------"
	txt += "\n|                  ID                  |     Next run     |    Cron    | Operation"
	txt += "\n|--------------------------------------|------------------|------------|----------"
	for _, e := range entries {
		cron := e.Cron
		if cron == "" {
			cron = "once"
		}
		txt += fmt.Sprintf("\n| %s | %s | %s | %s %s",
			e.ID,
			common.Beaut(e.TriggerAt.Local().Format("2006-01-02 15:04"), 16),
			common.Beaut(cron, 10),
			e.Request.Kind,
			requestPath(e.Request),
		)
	}
	txt += "\n-------------------------------------------------------------------------------"
	fmt.Fprintln(w, txt)
}

// requestPath is the path a request is best known by.
func requestPath(r warpops.Request) string {
	if len(r.Sources) > 0 {
		return r.Sources[0]
	}
	return r.Destination
}

var unschedule = groupControl("unschedule", func(ctx context.Context, c *warpcli.Client, id warpops.GroupID) error {
	return c.Unschedule(ctx, string(id))
})
