// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2022 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// relayctl 从控制端向 supervisor 发送 start/stop，并打印收到的 INFO/ERROR 回报。
//
//	relayctl [flags] <supervisor-ip> start|stop
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linjuya-lu/uart_udp_relay/internal/config"
	"github.com/linjuya-lu/uart_udp_relay/internal/control"
	"github.com/linjuya-lu/uart_udp_relay/internal/logger"
)

const serviceName = "relayctl"

type options struct {
	supervisor net.IP
	command    control.Command
	selfIP     net.IP
	port       int
	wait       time.Duration
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	var selfIP string
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.StringVar(&selfIP, "self-ip", "", "IP address announced to the supervisor (default: the address routing to it)")
	fs.IntVar(&o.port, "port", config.DefaultControlPort, "supervisor control port; reports are received on the same port")
	fs.DurationVar(&o.wait, "wait", 5*time.Second, "how long to wait for reports, 0 to exit right after sending")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <supervisor-ip> start|stop\n", serviceName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return nil, errors.New("supervisor ip and command are required")
	}
	if o.supervisor = net.ParseIP(fs.Arg(0)); o.supervisor == nil {
		return nil, fmt.Errorf("bad supervisor ip %q", fs.Arg(0))
	}
	o.command = control.Command(fs.Arg(1))
	if o.command != control.CommandStart && o.command != control.CommandStop {
		return nil, fmt.Errorf("unknown command %q", fs.Arg(1))
	}
	if selfIP != "" {
		if o.selfIP = net.ParseIP(selfIP); o.selfIP == nil {
			return nil, fmt.Errorf("bad self ip %q", selfIP)
		}
	}
	return o, nil
}

// localIP 返回通往 peer 的本机地址，UDP connect 不发包
func localIP(peer net.IP, port int) (net.IP, error) {
	c, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: peer, Port: port})
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).IP, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	o, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	zl, closeLog, err := logger.New(logger.FromEnv(""))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()
	log := zl.Sugar().Named(serviceName)

	if o.selfIP == nil {
		if o.selfIP, err = localIP(o.supervisor, o.port); err != nil {
			log.Errorf("Finding local address: %v", err)
			return 1
		}
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: o.port})
	if err != nil {
		log.Errorf("Binding report port %d: %v", o.port, err)
		return 1
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return send(ctx, log, conn, o)
}

// send 发出控制报文，然后在 wait 时间内打印回报；收到 ERROR 时返回 1
func send(ctx context.Context, log *zap.SugaredLogger, conn *net.UDPConn, o *options) int {
	to := &net.UDPAddr{IP: o.supervisor, Port: o.port}
	if _, err := conn.WriteToUDP(control.FormatCommand(o.selfIP, o.command), to); err != nil {
		log.Errorf("Sending %s to %s: %v", o.command, to, err)
		return 1
	}
	log.Infof("Sent %q to %s", control.FormatCommand(o.selfIP, o.command), to)
	if o.wait <= 0 {
		return 0
	}

	if err := conn.SetReadDeadline(time.Now().Add(o.wait)); err != nil {
		log.Errorf("Setting deadline: %v", err)
		return 1
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	code := 0
	buf := make([]byte, 1024)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				log.Errorf("Receiving report: %v", err)
				return 1
			}
			return code
		}
		r, err := control.ParseReport(buf[:n])
		if err != nil {
			log.Warnf("Ignoring packet from %s: %v", from, err)
			continue
		}
		if r.Severity == control.SeverityError {
			log.Errorf("%s: %s", from.IP, r.Message)
			code = 1
		} else {
			log.Infof("%s: %s", from.IP, r.Message)
		}
	}
}
