package ilitools

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests need /bin/sh")
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestRunnerReturnsExitCode(t *testing.T) {
	requireShell(t)
	runner := NewRunner("/bin/sh")

	result := runner.Run(context.Background(), []string{"-c", "exit 0"})
	assert.NoError(t, result.Err)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Succeeded())

	result = runner.Run(context.Background(), []string{"-c", "exit 3"})
	assert.NoError(t, result.Err)
	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, result.Succeeded())
}

func TestRunnerForwardsStderr(t *testing.T) {
	requireShell(t)
	logs := captureLogs(t)

	result := NewRunner("/bin/sh").Run(context.Background(), []string{"-c", "echo 'Error: no model found' >&2"})
	require.True(t, result.Succeeded())

	assert.Contains(t, logs.String(), "Error: no model found")
	assert.Contains(t, logs.String(), "level=DEBUG")
}

func TestRunnerLaunchFailure(t *testing.T) {
	result := NewRunner(filepath.Join(t.TempDir(), "no-such-runtime")).Run(context.Background(), []string{"-jar", "tool.jar"})

	assert.Error(t, result.Err)
	assert.Equal(t, FailureExitCode, result.ExitCode)
	assert.False(t, result.Succeeded())
}

func TestRunnerAlreadyCancelled(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewRunner("/bin/sh").Run(ctx, []string{"-c", "exit 0"})
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, FailureExitCode, result.ExitCode)
}

func TestRunnerCancellationKillsProcessTree(t *testing.T) {
	requireShell(t)
	pidFile := filepath.Join(t.TempDir(), "child.pid")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		// Cancel once the child is running.
		for range 100 {
			if data, err := os.ReadFile(pidFile); err == nil && len(strings.TrimSpace(string(data))) > 0 {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}
		cancel()
	}()

	start := time.Now()
	result := NewRunner("/bin/sh").Run(ctx, []string{"-c", "sleep 60 & echo $! > " + pidFile + "; wait"})

	assert.Less(t, time.Since(start), 15*time.Second)
	assert.Equal(t, FailureExitCode, result.ExitCode)
	assert.ErrorIs(t, result.Err, context.Canceled)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	childPid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		exists, err := process.PidExists(int32(childPid))
		if err != nil || !exists {
			return true
		}
		// An unreaped child is dead as well.
		p, err := process.NewProcess(int32(childPid))
		if err != nil {
			return true
		}
		status, err := p.Status()
		return err != nil || slices.Contains(status, process.Zombie)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestAwaitExitPrefersExitOverCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 50; i++ {
		done := make(chan Result, 1)
		done <- Result{ExitCode: 3}

		result := awaitExit(ctx, 0, done)
		require.NoError(t, result.Err)
		require.Equal(t, 3, result.ExitCode)
	}
}

func TestAwaitExitCancelledWhileRunning(t *testing.T) {
	requireShell(t)

	cmd := exec.Command("/bin/sh", "-c", "sleep 30")
	require.NoError(t, cmd.Start())

	done := make(chan Result, 1)
	go func() {
		done <- exitResult(cmd, cmd.Wait())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result := awaitExit(ctx, cmd.Process.Pid, done)
	assert.Equal(t, FailureExitCode, result.ExitCode)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
}
