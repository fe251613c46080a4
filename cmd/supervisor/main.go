// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2022 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// supervisor 在控制端口上等待 "<ip> start" / "<ip> stop"，据此启停 relay 进程。
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

	"github.com/linjuya-lu/uart_udp_relay/internal/config"
	"github.com/linjuya-lu/uart_udp_relay/internal/logger"
	"github.com/linjuya-lu/uart_udp_relay/internal/mqtt"
	"github.com/linjuya-lu/uart_udp_relay/internal/procmgr"
	"github.com/linjuya-lu/uart_udp_relay/internal/supervisor"
)

const serviceName = "uart-udp-supervisor"

func main() {
	os.Exit(run(os.Args[1:]))
}

func loadConfig(args []string) (*config.File, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	controlPort := fs.Int("control-port", 0, "UDP port for control packets")
	relayPath := fs.String("relay-path", "", "relay executable")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if *controlPort != 0 {
		cfg.Supervisor.ControlPort = *controlPort
	}
	if *relayPath != "" {
		cfg.Supervisor.RelayPath = *relayPath
	}
	if err := cfg.Supervisor.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(args []string) int {
	cfg, err := loadConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	sc := cfg.Supervisor

	zl, closeLog, err := logger.New(logger.FromEnv(sc.LogFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()
	log := zl.Sugar()

	var notifier supervisor.Notifier
	if sc.MQTT.Broker != "" {
		client, err := mqtt.NewClient(mqtt.ClientOptions{
			Broker:   sc.MQTT.Broker,
			ClientID: sc.MQTT.ClientID,
			Username: sc.MQTT.Username,
			Password: sc.MQTT.Password,
			Topic:    sc.MQTT.Topic,
			Qos:      1,
		})
		if err != nil {
			// 状态镜像不可用不影响控制功能
			log.Warnf("MQTT status mirror disabled: %v", err)
		} else {
			defer client.Disconnect(250)
			notifier = client
			log.Infof("Publishing status to %s on %s", sc.MQTT.Topic, sc.MQTT.Broker)
		}
	}

	launcher := procmgr.NewLauncher(log.Named("procmgr"), procmgr.Options{
		Path:             sc.RelayPath,
		Args:             sc.RelayArgs,
		Elevate:          sc.Elevate,
		SudoPasswordFile: sc.SudoPasswordFile,
	})
	sup := supervisor.New(log.Named("supervisor"), launcher, notifier, supervisor.Options{
		ControlPort: sc.ControlPort,
		GracePeriod: time.Duration(sc.GracePeriodMs) * time.Millisecond,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sup.Run(ctx); err != nil {
		log.Errorf("Supervisor failed: %v", err)
		return 1
	}
	return 0
}
