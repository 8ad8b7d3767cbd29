package cmd

import (
	"context"
	"syscall"
	"time"

	"firestige.xyz/woolong/internal/daemon"
)

// ClientInterface 定义控制命令需要的方法
type ClientInterface interface {
	Stop(ctx context.Context) error
	Reload(ctx context.Context) error
}

// pidClient 通过 PID 文件向运行中的 woolong 发送信号
type pidClient struct {
	pidFile string
	timeout time.Duration
}

func (c *pidClient) Stop(ctx context.Context) error {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return daemon.StopProcess(c.pidFile, timeout)
}

func (c *pidClient) Reload(ctx context.Context) error {
	return daemon.Signal(c.pidFile, syscall.SIGHUP)
}

var cli ClientInterface

// GetClient returns the client used by control commands. Without an injected client one
// is built from the --pidfile flag or the configured pid file.
func GetClient() ClientInterface {
	if cli != nil {
		return cli
	}
	path := controlPIDFile
	if path == "" {
		if cfg, err := loadConfig(); err == nil {
			path = cfg.Control.PIDFile
		}
	}
	return &pidClient{pidFile: path, timeout: controlTimeout}
}

// SetClient 注入客户端，测试使用
func SetClient(c ClientInterface) {
	cli = c
}

var (
	controlPIDFile string
	controlTimeout = 10 * time.Second
)
