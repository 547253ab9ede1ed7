// Command weather-lookup is an interactive terminal weather client.
//
//	weather-lookup [-verbose] [place or zip code]
//
// With no argument it repeats the most recent search on start.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/i474232898/weather-lookup/internal/app"
	"github.com/i474232898/weather-lookup/internal/config"
	"github.com/i474232898/weather-lookup/internal/console"
	"github.com/i474232898/weather-lookup/internal/mainloop"
	"github.com/i474232898/weather-lookup/internal/presenter"
)

func main() {
	verbose := flag.Bool("verbose", false, "write diagnostic logs to stderr")
	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	if err := run(strings.Join(flag.Args(), " ")); err != nil {
		fmt.Fprintf(os.Stderr, "weather-lookup: %v\n", err)
		os.Exit(1)
	}
}

func run(initial string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	components, err := app.Build(cfg)
	defer func() {
		if err := components.Close(); err != nil {
			log.Printf("ERROR: releasing resources: %v", err)
		}
	}()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := mainloop.New(0)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	p, err := presenter.New(components.Repository, components.Location, loop)
	if err != nil {
		return err
	}
	defer p.Close()

	view := console.NewView(os.Stdout)
	fmt.Fprintln(os.Stdout, console.HelpText)

	err = loop.Call(func() {
		p.OnViewAttached(view, initial == "")
		if initial != "" {
			p.SearchByText(initial)
		}
	})
	if err != nil {
		return err
	}

	session := console.NewSession(os.Stdin, os.Stdout, loop, p, view)
	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	return loop.Call(p.OnViewDetached)
}
