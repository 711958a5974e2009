package excel

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// process: внешний процесс движка, принадлежит ровно одному Instance.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	stopOnce sync.Once
	stopErr  error
}

func startProcess(ctx context.Context, argv []string, grace time.Duration) (*process, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("engine binary %q: %w", argv[0], err)
	}

	cmd := exec.Command(path, argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", argv[0], err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	if grace <= 0 {
		return p, nil
	}

	// процесс должен пережить окно запуска, иначе движок недоступен
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil, fmt.Errorf("%w: %v", errProcessExited, p.err)
	case <-ctx.Done():
		_ = p.stop()
		return nil, ctx.Err()
	case <-timer.C:
		return p, nil
	}
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// stop kills the process and waits until it is reaped.
func (p *process) stop() error {
	p.stopOnce.Do(func() {
		if p.exited() {
			return
		}
		if err := p.cmd.Process.Kill(); err != nil && !p.exited() {
			p.stopErr = fmt.Errorf("kill engine process %d: %w", p.pid(), err)
			return
		}
		<-p.done
	})
	return p.stopErr
}
