package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// currentBuildArgs is reported by the daemon's system.getVersion.
var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	return newApp(bArgs).Run(args)
}

func newApp(bArgs BuildArgs) *cli.App {
	commands := opCommands()
	commands = append(commands,
		cli.Command{
			Name:                   "trash",
			Usage:                  "move files into the trash bin",
			Description:            TrashDescription,
			CustomHelpTemplate:     CMD_HELP_TEMPL,
			OnUsageError:           common.UsageErrorCallback,
			UsageText:              "[flags] <paths...>",
			Action:                 opAction(trashSpec),
			Flags:                  opFlags,
			UseShortOptionHandling: true,
			Subcommands: []cli.Command{
				{
					Name:               "list",
					Aliases:            []string{"ls"},
					Usage:              "list trashed items",
					Description:        TrashListDescription,
					CustomHelpTemplate: CMD_HELP_TEMPL,
					Action:             trashList,
					Flags:              remoteFlags,
				},
				{
					Name:               "restore",
					Usage:              "restore a trashed item",
					UsageText:          "<id>",
					Description:        TrashRestoreDescription,
					CustomHelpTemplate: CMD_HELP_TEMPL,
					Action:             trashRestore,
					Flags:              remoteFlags,
				},
			},
		},
		cli.Command{
			Name:               "daemon",
			Usage:              "run the background daemon",
			Description:        DaemonDescription,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Action:             getDaemonAction(),
			Flags:              daemonFlags,
		},
		cli.Command{
			Name:   "stop",
			Usage:  "stop the running daemon",
			Action: stopDaemon,
		},
		cli.Command{
			Name:                   "list",
			Aliases:                []string{"l"},
			Usage:                  "list operation groups on the daemon",
			Description:            ListDescription,
			CustomHelpTemplate:     CMD_HELP_TEMPL,
			OnUsageError:           common.UsageErrorCallback,
			Action:                 listGroups,
			Flags:                  remoteFlags,
			UseShortOptionHandling: true,
		},
		cli.Command{
			Name:                   "status",
			Aliases:                []string{"s"},
			Usage:                  "show an operation group on the daemon",
			UsageText:              "[--tasks] <group>",
			Description:            StatusDescription,
			CustomHelpTemplate:     CMD_HELP_TEMPL,
			OnUsageError:           common.UsageErrorCallback,
			Action:                 status,
			Flags:                  statusFlags,
			UseShortOptionHandling: true,
		},
		controlCommand("cancel", "cancel an operation group or, with --task, one task", cancelGroup, cancelFlags),
		controlCommand("pause", "pause an operation group", pauseGroup, remoteFlags),
		controlCommand("resume", "resume a paused operation group", resumeGroup, remoteFlags),
		controlCommand("ack", "forget a completed operation group", ackGroup, remoteFlags),
		cli.Command{
			Name:                   "schedules",
			Aliases:                []string{"sched"},
			Usage:                  "list operations scheduled on the daemon",
			Description:            SchedulesDescription,
			CustomHelpTemplate:     CMD_HELP_TEMPL,
			OnUsageError:           common.UsageErrorCallback,
			Action:                 listSchedules,
			Flags:                  remoteFlags,
			UseShortOptionHandling: true,
		},
		cli.Command{
			Name:                   "unschedule",
			Usage:                  "drop a scheduled operation",
			UsageText:              "<id>",
			Description:            UnscheduleDescription,
			CustomHelpTemplate:     CMD_HELP_TEMPL,
			OnUsageError:           common.UsageErrorCallback,
			Action:                 unschedule,
			Flags:                  remoteFlags,
			UseShortOptionHandling: true,
		},
		cli.Command{
			Name:               "secret",
			Usage:              "print the secret of a TCP-listening daemon",
			Description:        SecretDescription,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Action:             showSecret,
			Flags:              secretFlags,
		},
		cli.Command{
			Name:    "help",
			Aliases: []string{"h"},
			Usage:   "prints the help message",
			Action:  common.Help,
		},
		cli.Command{
			Name:               "version",
			Aliases:            []string{"v"},
			Usage:              "prints installed version of warpops",
			UsageText:          " ",
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Action:             common.GetVersion,
		},
	)
	app := &cli.App{
		Name:                  "warpops",
		HelpName:              "warpops",
		Usage:                 "A scheduler for file operations.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "warpops <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands:              commands,
		Flags:                 globalFlags,
		Action:                common.Help,
		HideHelp:              true,
		HideVersion:           true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app
}

func controlCommand(name, usage string, action cli.ActionFunc, flags []cli.Flag) cli.Command {
	return cli.Command{
		Name:                   name,
		Usage:                  usage,
		UsageText:              "<group>",
		Description:            fmt.Sprintf(ControlDescription, name),
		CustomHelpTemplate:     CMD_HELP_TEMPL,
		OnUsageError:           common.UsageErrorCallback,
		Action:                 action,
		Flags:                  flags,
		UseShortOptionHandling: true,
	}
}
