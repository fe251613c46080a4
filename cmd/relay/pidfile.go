package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func writePidFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPidFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

// removePidFile 只删除属于本进程的 pid 文件
func removePidFile(log *zap.SugaredLogger, path string) {
	if pid, err := readPidFile(path); err != nil || pid != os.Getpid() {
		return
	}
	if err := os.Remove(path); err != nil {
		log.Warnf("Removing pid file: %v", err)
	}
}

// stop 向 pid 文件记录的 relay 发送 SIGINT
func stop(log *zap.SugaredLogger, path string) int {
	pid, err := readPidFile(path)
	if err != nil {
		log.Errorf("No running relay: %v", err)
		return exitFailure
	}
	if err := unix.Kill(pid, unix.SIGINT); err != nil {
		if errors.Is(err, unix.ESRCH) {
			log.Warnf("Relay (pid %d) is not running, removing stale pid file", pid)
			_ = os.Remove(path)
			return exitOK
		}
		log.Errorf("Stopping relay (pid %d): %v", pid, err)
		return exitFailure
	}
	log.Infof("Sent SIGINT to relay (pid %d)", pid)
	return exitOK
}
