// Command carla-headless runs one engine instance against whatever
// plugins and OSC peers connect to it, with no GUI, spec.md §4.7's
// engine lifecycle (Init/Close) driven from a CLI instead of a frontend.
//
// Grounded on shaban/macaudio's examples/engine_demo main.go: build a
// config, start the engine, print status, wait on an interrupt signal,
// stop cleanly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/carla-audio/carla-go/engine"
	"github.com/carla-audio/carla-go/osc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "carla-headless:", err)
		os.Exit(1)
	}
}

func run() error {
	clientName := pflag.String("client-name", "carla-headless", "engine client name, also the OSC path prefix")
	oscUDPAddr := pflag.String("osc-udp", "127.0.0.1:22752", "UDP address for OSC control peers")
	oscTCPAddr := pflag.String("osc-tcp", "127.0.0.1:22753", "TCP address for OSC UI bridges")
	driverName := pflag.String("driver", "jack", "audio backend: \"jack\" or \"ticker\" (no real I/O, for testing without a JACK server)")

	opts := engine.DefaultOptions()
	optsFlags := opts.FlagSet()
	pflag.CommandLine.AddFlagSet(optsFlags)
	pflag.Parse()

	driver, err := newDriver(*driverName, *clientName, opts)
	if err != nil {
		return err
	}
	e, err := engine.New(*clientName, driver, nil, opts)
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := e.Init(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "carla-headless: engine close:", err)
		}
	}()

	dispatcher := osc.New(*clientName)
	if err := dispatcher.ListenUDP(*oscUDPAddr); err != nil {
		return fmt.Errorf("osc udp: %w", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.ListenTCP(*oscTCPAddr); err != nil {
		return fmt.Errorf("osc tcp: %w", err)
	}
	e.AttachOSC(dispatcher)

	fmt.Printf("carla-headless: engine %q running (buffer=%d rate=%.0f, osc udp=%s tcp=%s)\n",
		*clientName, e.BufferSize(), e.SampleRate(), *oscUDPAddr, *oscTCPAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("carla-headless: shutdown signal received")
	return nil
}
