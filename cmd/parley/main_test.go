package main

import (
	"errors"
	"os"
	"os/exec"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainHelp(t *testing.T) {
	output, err := runMainSubprocess(t, "--help")
	require.NoError(t, err, string(output))
	require.Contains(t, string(output), "Usage:")
	require.Contains(t, string(output), "transcribe")
}

func TestMainVersionFlag(t *testing.T) {
	output, err := runMainSubprocess(t, "--version")
	require.NoError(t, err, string(output))
	require.Contains(t, string(output), "parley ")
}

func TestMainInvalidCommandExitsWithUsage(t *testing.T) {
	output, err := runMainSubprocess(t, "not-a-command")
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 2, exitErr.ExitCode())
	require.Contains(t, string(output), "unknown command")
}

func TestMainMissingAudioExitsWithFailure(t *testing.T) {
	dir := t.TempDir()
	output, err := runMainSubprocess(t,
		"--config", dir+"/missing.yaml",
		"transcribe", dir+"/missing.wav",
	)

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), string(output))
	require.Equal(t, 1, exitErr.ExitCode())
	require.Contains(t, string(output), "open audio")
}

func TestMainHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	os.Args = []string{"parley"}
	if i := slices.Index(args, "--"); i >= 0 {
		os.Args = append(os.Args, args[i+1:]...)
	}
	main()
}

func runMainSubprocess(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()

	cmdArgs := []string{"-test.run=TestMainHelperProcess", "--"}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.Command(os.Args[0], cmdArgs...)
	dir := t.TempDir()
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_PROCESS=1",
		"XDG_STATE_HOME="+dir,
		"XDG_RUNTIME_DIR="+dir,
	)
	return cmd.CombinedOutput()
}
