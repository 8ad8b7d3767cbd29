package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrNotRunning is returned when the PID file names no live process.
var ErrNotRunning = errors.New("woolong: daemon not running")

// Signal 向 PID 文件记录的进程发送信号
func Signal(pidFile string, sig syscall.Signal) error {
	pid, err := readPidFile(pidFile)
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return ErrNotRunning
		}
		return err
	}
	return nil
}

// StopProcess 发送 SIGTERM 并等待进程退出，超时返回错误
func StopProcess(pidFile string, timeout time.Duration) error {
	pid, err := readPidFile(pidFile)
	if err != nil {
		return err
	}
	if err := Signal(pidFile, syscall.SIGTERM); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) did not exit within %s", pid, timeout)
}

func processAlive(pid int) bool {
	// signal 0 只做存在性检查
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func readPidFile(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: no pid file configured", ErrNotRunning)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %s", path)
	}
	if !processAlive(pid) {
		return 0, ErrNotRunning
	}
	return pid, nil
}
