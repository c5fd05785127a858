package relay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// childProcess wraps one ffmpeg child running in its own process group, so
// it can be torn down as a unit independent of this process's own group.
type childProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// spawn launches ffmpeg against playlistURL, configured to copy the audio
// codec and emit ADTS frames to stdout. The child is started detached from
// the request context: shutdown is driven explicitly by stop() so SIGTERM
// can be sent before escalating to SIGKILL, instead of exec.CommandContext's
// immediate single-process kill.
func (s *Session) spawn(playlistURL string) (*childProcess, error) {
	cmd := exec.Command(s.cfg.ffmpegPath(),
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "10",
		"-headers", fmt.Sprintf("X-Radiko-AuthToken: %s\r\n", s.auth.Token().Token),
		"-i", playlistURL,
		"-c:a", "copy",
		"-f", "adts",
		"-fflags", "+nobuffer+flush_packets",
		"-loglevel", "warning",
		"pipe:1",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Info("relay: ffmpeg stderr", "stationId", s.req.StationID, "line", scanner.Text())
		}
	}()

	return &childProcess{cmd: cmd, stdout: stdout}, nil
}

// stop sends SIGTERM to the child's process group, waits up to
// killGracePeriod, and escalates to SIGKILL if the group is still alive.
// ESRCH (the group has already exited) is treated as success at every step.
func (p *childProcess) stop() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	pgid := -p.cmd.Process.Pid

	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		slog.Warn("relay: SIGTERM to ffmpeg process group failed", "pgid", pgid, "error", err)
	}

	waitDone := make(chan struct{})
	go func() {
		p.cmd.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		return
	case <-time.After(killGracePeriod):
	}

	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		slog.Warn("relay: SIGKILL to ffmpeg process group failed", "pgid", pgid, "error", err)
	}
	<-waitDone
}
