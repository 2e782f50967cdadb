package cmd

const DESCRIPTION = `
warpops schedules file operations: copying, moving, deleting, trashing,
linking, archiving and preloading. Operations run in-process with live
progress, or on a background daemon with --remote.
`

const OpDescription = `
Runs a %[1]s operation. Every argument becomes part of one operation
group whose progress is shown until it completes; Ctrl-C cancels the
group. With --at or --cron the operation is handed to the daemon's
scheduler instead, and a new group starts at every run.

Usage:
        warpops %[1]s %[2]s

Examples:
        warpops %[1]s %[3]s
`

const TrashDescription = `
Moves files and directories into the warpops trash bin, from where they
can be listed and restored.

Usage:
        warpops trash [flags] <paths...>
        warpops trash list
        warpops trash restore <id>
`

const TrashListDescription = `
Lists the items of the trash bin, most recently trashed first.
`

const TrashRestoreDescription = `
Moves a trashed item back to where it was trashed from. The restore
fails if that path exists again.
`

const DaemonDescription = `
Runs the warpops daemon in the foreground. The daemon listens on a local
socket (a named pipe on Windows) unless WARPOPS_LISTEN or the daemon.listen
configuration key names a TCP address, which requires a secret.
`

const ListDescription = `
Lists the operation groups known to the daemon with their progress.
`

const StatusDescription = `
Shows the state of one operation group on the daemon, optionally with
every task it contains.
`

const ControlDescription = `
Sends %s to an operation group on the daemon.
`

const SchedulesDescription = `
Lists the operations waiting on the daemon's scheduler with their next
start time. Operations are scheduled with --at or --cron on any operation
command:

        warpops copy --at 23:30 ./reports /backup
        warpops delete --cron "0 3 * * *" /tmp/cache
`

const UnscheduleDescription = `
Drops a scheduled operation before its next start. Runs already started
are not affected; cancel their groups instead.
`

const SecretDescription = `
Prints the secret a daemon listening on TCP requires, creating it if
needed. The secret is kept in the system keyring, or in a file in the
configuration directory where no keyring is available. A daemon started
with a listen address and no configured secret uses this one, and
clients on the same machine find it there too.
`
