package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/urfave/cli"
	"github.com/warpdl/warpops/common"
	"github.com/warpdl/warpops/internal/secret"
)

// captureOutput captures stdout and stderr during function execution.
// It redirects os.Stdout and os.Stderr to pipes, runs the provided function,
// and returns the captured output as strings.
func captureOutput(f func()) (stdout, stderr string) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	// drain while f runs so large outputs cannot fill the pipes
	var bufOut, bufErr bytes.Buffer
	done := make(chan struct{}, 2)
	go func() { io.Copy(&bufOut, rOut); done <- struct{}{} }()
	go func() { io.Copy(&bufErr, rErr); done <- struct{}{} }()

	defer func() {
		wOut.Close()
		wErr.Close()
		<-done
		<-done
		rOut.Close()
		rErr.Close()
		os.Stdout = oldStdout
		os.Stderr = oldStderr
		stdout, stderr = bufOut.String(), bufErr.String()
	}()
	f()
	return
}

// assertContains checks if output contains the expected substring.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// assertNotContains checks if output does NOT contain the specified substring.
func assertNotContains(t *testing.T, output, notExpected string) {
	t.Helper()
	if strings.Contains(output, notExpected) {
		t.Errorf("expected output to NOT contain %q, got:\n%s", notExpected, output)
	}
}

// assertErrorFormat checks that error output follows the standard format:
// warpops: cmd[action]: msg
func assertErrorFormat(t *testing.T, output, cmd, action string) {
	t.Helper()
	pattern := "warpops: " + cmd + "[" + action + "]:"
	if !strings.Contains(output, pattern) {
		t.Errorf("expected error format %q, got:\n%s", pattern, output)
	}
}

// isolate points the configuration directory at a fresh temporary
// directory and clears every WARPOPS_* variable for the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := configDir
	configDir = dir
	oldStore := secretStore
	secretStore = func() secret.Store { return secret.NewFile(dir) }
	t.Cleanup(func() {
		configDir = old
		secretStore = oldStore
	})
	for _, name := range []string{
		common.ConfigEnv, common.DebugEnv, common.DaemonURIEnv, common.ListenEnv,
		common.SecretEnv, common.IOLimitEnv, common.CPULimitEnv, common.LightLimitEnv,
		common.MaxAttemptsEnv, common.RetryBaseEnv, common.EmitIntervalEnv,
		common.AbortOnFailureEnv, common.TrashDirEnv,
	} {
		t.Setenv(name, "")
	}
	return dir
}

// runApp runs the command line in args (without the program name) and
// returns its output and the exit code it asked for.
func runApp(t *testing.T, args ...string) (stdout string, code int) {
	t.Helper()
	oldExiter := cli.OsExiter
	cli.OsExiter = func(c int) { code = c }
	defer func() { cli.OsExiter = oldExiter }()

	app := newApp(BuildArgs{Version: "test", BuildType: "dev"})
	stdout, _ = captureOutput(func() {
		err := app.Run(append([]string{"warpops"}, args...))
		if _, exit := err.(cli.ExitCoder); err != nil && !exit {
			t.Errorf("app.Run(%v): %v", args, err)
		}
	})
	return stdout, code
}
