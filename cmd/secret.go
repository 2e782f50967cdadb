package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/cmd/common"
	"github.com/warpdl/warpops/internal/secret"
)

// secretStore is where a TCP daemon's generated secret is kept.
var secretStore = func() secret.Store {
	return secret.Default("warpops", configDir)
}

var secretFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "rotate",
		Usage: "replace the stored secret with a new one",
	},
}

// ensureSecret gives a TCP daemon without a configured secret the stored
// one, generating it on first use.
func (s *settings) ensureSecret() (created bool, err error) {
	if s.Listen == "" || s.Secret != "" {
		return false, nil
	}
	s.Secret, created, err = secret.Ensure(secretStore())
	return created, err
}

// lookupSecret fills in the stored secret for a TCP daemon URI when none is
// configured. A missing secret is left for the daemon to reject.
func (s *settings) lookupSecret() {
	if s.Secret != "" || !strings.HasPrefix(s.DaemonURI, "tcp://") {
		return
	}
	if v, err := secretStore().Get(); err == nil {
		s.Secret = v
	}
}

func showSecret(ctx *cli.Context) error {
	store := secretStore()
	var (
		v   string
		err error
	)
	if ctx.Bool("rotate") {
		v, _, err = secret.Rotate(store)
	} else {
		v, _, err = secret.Ensure(store)
	}
	if err != nil {
		common.PrintRuntimeErr(ctx, "secret", "store", err)
		return nil
	}
	fmt.Println(v)
	if ctx.Bool("rotate") {
		fmt.Fprintln(os.Stderr, "Restart the daemon for the new secret to take effect.")
	}
	return nil
}
