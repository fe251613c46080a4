// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2022 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// relay 在若干串口与 UDP 端点之间转发字节，直到收到 SIGINT/SIGTERM。
//
//	relay [flags] start|stop
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linjuya-lu/uart_udp_relay/internal/config"
	"github.com/linjuya-lu/uart_udp_relay/internal/logger"
	"github.com/linjuya-lu/uart_udp_relay/internal/relay"
	"github.com/linjuya-lu/uart_udp_relay/internal/serial"
)

const serviceName = "uart-udp-relay"

const (
	exitOK = iota
	exitFailure
	exitUsage
)

type options struct {
	configPath string
	targetIP   string
	interval   int
	backend    string
	runID      string
	overrides  config.Overrides
	action     string
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "path to the YAML configuration file")
	fs.StringVar(&o.targetIP, "target-ip", "", "IP address serial data is sent to (required for start)")
	fs.IntVar(&o.interval, "interval", -1, "serial poll interval in milliseconds")
	fs.StringVar(&o.backend, "serial-backend", "", "serial backend: bugst or tarm")
	fs.StringVar(&o.runID, "run-id", "", "identifier of this run, set by the supervisor")
	fs.StringVar(&o.overrides.SerialPorts, "serial-ports", "", "comma separated serial devices, one per connection")
	fs.StringVar(&o.overrides.TargetPorts, "target-ports", "", "comma separated UDP target ports, one per connection")
	fs.StringVar(&o.overrides.ListenPorts, "listen-ports", "", "comma separated UDP listen ports, one per connection")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] start|stop\n", serviceName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("exactly one action is required")
	}
	o.action = fs.Arg(0)
	if o.action != "start" && o.action != "stop" {
		fs.Usage()
		return nil, fmt.Errorf("unknown action %q", o.action)
	}
	return o, nil
}

// loadConfig 合并配置文件、环境变量和命令行，优先级依次升高
func loadConfig(o *options) (*config.File, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	r := &cfg.Relay
	if o.targetIP != "" {
		r.TargetIP = o.targetIP
	}
	if o.interval >= 0 {
		r.Interval = o.interval
	}
	if o.backend != "" {
		r.SerialBackend = o.backend
	}
	if err := o.overrides.Apply(r); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	o, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}

	zl, closeLog, err := logger.New(logger.FromEnv(cfg.Relay.LogFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer closeLog()
	log := zl.Sugar().Named("relay")
	if o.runID != "" {
		log = log.With("run", o.runID)
	}

	if o.action == "stop" {
		return stop(log, cfg.Relay.PidFile)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return start(ctx, log, &cfg.Relay)
}

// openPort 为空时由 engine 使用 serial.NewPort，测试时替换
var openPort func(serial.Config) (serial.Port, error)

// start 运行到 ctx 取消或所有 worker 退出。
// 这里只校验 relay 级别的字段，单条连接的错误由 engine 跳过该连接。
func start(ctx context.Context, log *zap.SugaredLogger, rc *config.RelayConfig) int {
	if err := rc.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return exitFailure
	}
	if err := writePidFile(rc.PidFile); err != nil {
		log.Warnf("Writing pid file: %v", err)
	} else {
		defer removePidFile(log, rc.PidFile)
	}

	engine := relay.NewEngine(log, relay.Options{
		TargetIP:     rc.TargetIP,
		PollInterval: time.Duration(rc.Interval) * time.Millisecond,
		RxTimeout:    time.Duration(rc.RxTimeoutMs) * time.Millisecond,
		Backend:      rc.SerialBackend,
		OpenPort:     openPort,
	})
	n, err := engine.Start(ctx, rc.Connections)
	if err != nil {
		log.Errorf("Some connections failed to start: %v", err)
	}
	if n == 0 {
		log.Error("No connection could be started")
		return exitFailure
	}
	log.Infof("Relaying %d connection(s) to %s", n, rc.TargetIP)

	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("Received termination signal, stopping")
	case <-engine.Done():
		log.Errorf("All workers stopped on their own: %v", engine.Err())
		code = exitFailure
	}
	engine.Stop()
	engine.LogStats()
	return code
}
