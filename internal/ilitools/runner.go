package ilitools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// FailureExitCode is reported when the tool could not run to completion,
// either because it failed to start or because it was cancelled.
const FailureExitCode = -1

const killWaitTimeout = 10 * time.Second

type Result struct {
	ExitCode int
	Err      error
}

func (r Result) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0
}

func failure(err error) Result {
	return Result{ExitCode: FailureExitCode, Err: err}
}

type ProcessRunner interface {
	Run(ctx context.Context, args []string) Result
}

// Runner starts one process per call on the configured runtime, which is the
// java executable in production. There are no retries.
type Runner struct {
	runtime string
}

var _ ProcessRunner = (*Runner)(nil)

func NewRunner(runtime string) *Runner {
	return &Runner{runtime: runtime}
}

func (r *Runner) Run(ctx context.Context, args []string) Result {
	slog.Info("executing command", "runtime", r.runtime, "command", PrettyPrintCommand(args))

	if err := ctx.Err(); err != nil {
		return failure(err)
	}

	cmd := exec.Command(r.runtime, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return failure(fmt.Errorf("error creating stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return failure(fmt.Errorf("error starting %s: %w", r.runtime, err))
	}

	done := make(chan Result, 1)
	go func() {
		forwardStderr(stderr, cmd.Process.Pid)
		done <- exitResult(cmd, cmd.Wait())
	}()

	return awaitExit(ctx, cmd.Process.Pid, done)
}

// awaitExit prefers the exit result over the cancellation if both are ready.
func awaitExit(ctx context.Context, pid int, done <-chan Result) Result {
	select {
	case result := <-done:
		return result

	case <-ctx.Done():
		select {
		case result := <-done:
			return result
		default:
		}

		slog.Info("cancellation requested, killing process tree", "pid", pid)
		if err := killProcessTree(pid); err != nil {
			slog.Error("error killing process tree", "pid", pid, "error", err)
		}

		select {
		case <-done:
		case <-time.After(killWaitTimeout):
			slog.Warn("process did not exit after kill", "pid", pid)
		}

		return failure(ctx.Err())
	}
}

func exitResult(cmd *exec.Cmd, err error) Result {
	if err == nil {
		return Result{ExitCode: cmd.ProcessState.ExitCode()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Terminated by a signal.
			return failure(exitErr)
		}
		return Result{ExitCode: code}
	}

	return failure(fmt.Errorf("error waiting for process: %w", err))
}

func forwardStderr(r io.Reader, pid int) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Debug(scanner.Text(), "pid", pid, "stream", "stderr")
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("error reading stderr", "pid", pid, "error", err)
		// Drain so the process never blocks on a full pipe.
		io.Copy(io.Discard, r) //nolint:errcheck
	}
}

// killProcessTree collects all descendants before killing anything, so that
// children re-parented after the root dies are not missed.
func killProcessTree(pid int) error {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return fmt.Errorf("error looking up process %d: %w", pid, err)
	}

	tree := append([]*process.Process{root}, descendants(root)...)

	var errs []error
	for _, p := range tree {
		if err := p.Kill(); err != nil {
			if exists, _ := process.PidExists(p.Pid); exists {
				errs = append(errs, fmt.Errorf("error killing process %d: %w", p.Pid, err))
			}
		}
	}

	return errors.Join(errs...)
}

func descendants(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil {
		// ErrorNoChildren is the common case here.
		return nil
	}

	var all []*process.Process
	for _, child := range children {
		all = append(all, child)
		all = append(all, descendants(child)...)
	}
	return all
}
