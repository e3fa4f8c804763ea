package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imgview/internal/config"
	"imgview/internal/ivd"
	"imgview/internal/version"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:7341", "listen address (tcp)")
	configPath := flag.String("config", "", "config file (JSONC)")
	debug := flag.Bool("debug", false, "enable debug logging")
	waitTimeout := flag.Duration("wait-timeout", 10*time.Second, "upper bound for requests that wait for the viewer to settle")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	wd, err := os.Getwd()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, src, err := config.Load(wd, *configPath, config.Layer{}, os.Environ())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", "global", src.Global, "project", src.Project)

	s := ivd.NewServer(ivd.Options{
		Listen: *listen,
		Logger: logger,
		Handlers: ivd.HandlerOptions{
			Config:      cfg,
			WaitTimeout: *waitTimeout,
		},
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		_ = s.Close()
	}()

	if err := s.Run(); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			_, _ = fmt.Fprintf(os.Stderr, "listen address in use: %s\nTry: -listen 127.0.0.1:7342\n", *listen)
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
