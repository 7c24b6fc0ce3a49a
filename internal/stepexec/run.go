package stepexec

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"
	"time"
)

// streamConsumer is what a streaming step hands a freshly produced
// line to; the resolver-level step id and "stdout"/"stderr" let the
// orchestrator correlate lines across concurrently-running steps.
type streamConsumer func(stream string, line string)

// runOptions configures one subprocess invocation.
type runOptions struct {
	needsSudo bool
	timeout   time.Duration
	stream    streamConsumer // nil for blocking steps
	env       []string
}

// runCommand executes argv, optionally under sudo, enforcing timeout
// with a graceful-then-force shutdown, and returns a Result with the
// last 200 lines of stdout/stderr retained regardless of whether the
// step streamed.
func (e *Executor) runCommand(ctx context.Context, argv []string, opts runOptions) Result {
	start := time.Now()

	if opts.timeout <= 0 {
		opts.timeout = defaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var cmd *exec.Cmd
	var stdinPipe io.WriteCloser
	if opts.needsSudo {
		sudoArgv := append([]string{"-S"}, argv...)
		cmd = exec.CommandContext(cctx, "sudo", sudoArgv...)
	} else {
		cmd = exec.CommandContext(cctx, argv[0], argv[1:]...)
	}
	if len(opts.env) > 0 {
		cmd.Env = opts.env
	}
	// New process group so a timeout/cancel can signal the whole tree,
	// not just the direct child (a shell pipeline spawns grandchildren).
	setProcessGroup(cmd)
	// Override exec.CommandContext's default hard-kill-on-cancel with
	// the graceful-signal-then-5s-force-kill shutdown §4.5 requires.
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return nil
	}

	stdoutR, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	stderrR, err := cmd.StderrPipe()
	if err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	if opts.needsSudo {
		stdinPipe, err = cmd.StdinPipe()
		if err != nil {
			return Result{Status: StatusFailed, Error: err}
		}
	}

	if err := cmd.Start(); err != nil {
		return Result{Status: StatusFailed, Error: err}
	}

	if opts.needsSudo {
		pw, err := e.password()
		if err != nil {
			killProcessGroup(cmd)
			return Result{Status: StatusFailed, Error: err}
		}
		io.WriteString(stdinPipe, pw+"\n")
		stdinPipe.Close()
		defer runSudoK()
	}

	var wg sync.WaitGroup
	stdoutTail := newTailBuffer(tailLines)
	stderrTail := newTailBuffer(tailLines)
	wg.Add(2)
	go consumeStream(&wg, stdoutR, "stdout", stdoutTail, opts.stream)
	go consumeStream(&wg, stderrR, "stderr", stderrTail, opts.stream)
	wg.Wait()

	waitErr := cmd.Wait()
	duration := time.Since(start).Milliseconds()

	if cctx.Err() == context.DeadlineExceeded {
		return Result{
			Status: StatusFailed, ExitCode: -1, DurationMS: duration,
			StdoutTail: stdoutTail.lines(), StderrTail: stderrTail.lines(),
			Error: errTimeout,
		}
	}
	if ctx.Err() == context.Canceled {
		return Result{
			Status: StatusCancelled, ExitCode: -1, DurationMS: duration,
			StdoutTail: stdoutTail.lines(), StderrTail: stderrTail.lines(),
			Error: errCancelled,
		}
	}
	if waitErr != nil {
		exitCode := -1
		if ee, ok := waitErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return Result{
			Status: StatusFailed, ExitCode: exitCode, DurationMS: duration,
			StdoutTail: stdoutTail.lines(), StderrTail: stderrTail.lines(),
			Error: waitErr,
		}
	}

	return Result{
		Status: StatusSucceeded, ExitCode: 0, DurationMS: duration,
		StdoutTail: stdoutTail.lines(), StderrTail: stderrTail.lines(),
	}
}

// consumeStream reads r byte by byte on its own goroutine (readLoop)
// and flushes the accumulated partial line either on a newline or
// after a 100ms quiet period with no further bytes, whichever comes
// first, per §4.5's streaming semantics. A quiet-period flush matters
// for a producer that writes a prompt or progress update with no
// trailing newline.
func consumeStream(wg *sync.WaitGroup, r io.Reader, name string, tail *tailBuffer, stream streamConsumer) {
	defer wg.Done()

	type chunk struct {
		b   byte
		err error
	}
	ch := make(chan chunk, 256)
	go func() {
		reader := bufio.NewReaderSize(r, 64*1024)
		for {
			b, err := reader.ReadByte()
			ch <- chunk{b: b, err: err}
			if err != nil {
				return
			}
		}
	}()

	var partial []byte
	flush := func() {
		if len(partial) == 0 {
			return
		}
		line := string(partial)
		tail.add(line)
		if stream != nil {
			stream(name, line)
		}
		partial = nil
	}

	timer := time.NewTimer(quietPeriod)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case c := <-ch:
			if c.err != nil {
				flush()
				return
			}
			if c.b == '\n' {
				flush()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				continue
			}
			partial = append(partial, c.b)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(quietPeriod)
		case <-timer.C:
			flush()
		}
	}
}

// setProcessGroup and killProcessGroup are platform-specific; the
// Unix implementation puts the child in its own process group so a
// timeout can signal the whole tree with one syscall.Kill(-pid, ...).
var setProcessGroup = func(cmd *exec.Cmd) {}
var killProcessGroup = func(cmd *exec.Cmd) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}

func (e *Executor) password() (string, error) {
	if e.Password == nil {
		return "", errSudoPasswordRequired
	}
	return e.Password()
}

func runSudoK() {
	exec.Command("sudo", "-k").Run()
}
