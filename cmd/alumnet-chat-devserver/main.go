// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// alumnet-chat-devserver runs an in-memory chat backend with the
// portal's /api/messages endpoints and /ws event channel, for working
// on alumnet-chat without a portal deployment.
//
// Accounts are given on the command line as id:token[:name]:
//
//	alumnet-chat-devserver --listen 127.0.0.1:3000 \
//	    --account "alice:dev-alice:Alice Liddell" --account "bob:dev-bob:Bob Smith"
//
// Everything is lost when the process exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/alumnet-portal/chatsync/devserver"
	"github.com/alumnet-portal/chatsync/lib/cli"
	"github.com/alumnet-portal/chatsync/lib/version"
)

func main() {
	os.Exit(cli.Report(os.Stderr, run()))
}

func run() error {
	var (
		listenAddress string
		accountValues []string
		logLevel      string
		sendBuffer    int
	)
	flagSet := pflag.NewFlagSet("alumnet-chat-devserver", pflag.ContinueOnError)
	flagSet.StringVar(&listenAddress, "listen", "127.0.0.1:3000", "address to serve HTTP and websocket on")
	flagSet.StringArrayVar(&accountValues, "account", nil, "account as id:token[:display name] (repeatable, at least one)")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	flagSet.IntVar(&sendBuffer, "send-buffer", 64, "frames queued per connection before it is dropped as too slow")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println("alumnet-chat-devserver " + version.Full())
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return cli.Validation("%w", err)
	}

	level, err := cli.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger(level)

	if len(accountValues) == 0 {
		return cli.Validation("no accounts").WithHint(`pass --account "alice:dev-alice:Alice Liddell" once per user`)
	}
	accounts := make([]devserver.Account, 0, len(accountValues))
	for _, value := range accountValues {
		account, err := devserver.ParseAccount(value)
		if err != nil {
			return cli.Validation("%w", err)
		}
		accounts = append(accounts, account)
	}

	server, err := devserver.New(devserver.Config{
		Accounts:   accounts,
		SendBuffer: sendBuffer,
		Logger:     logger,
	})
	if err != nil {
		return cli.Validation("%w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Listen(listenAddress)
	}()
	logger.Info("devserver running",
		"listen", listenAddress,
		"accounts", len(accounts),
		"version", version.Info(),
	)

	select {
	case err := <-serveDone:
		if err != nil {
			return cli.Internal("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	if err := server.Shutdown(5 * time.Second); err != nil {
		return cli.Internal("shutdown: %w", err)
	}
	return nil
}
