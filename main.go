/*
Lantern renders a fixed PBR scene with Vulkan. The configuration file is
read from the first argument, or lantern.toml when none is given.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/lantern/engine"
	"github.com/spaghettifunk/lantern/engine/core"
)

func main() {
	flag.Parse()
	path := "lantern.toml"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	cfg, err := core.LoadConfig(path)
	if err != nil {
		core.LogFatal("load config: %s", err)
	}
	level, _ := core.ParseLogLevel(cfg.Log.Level)
	core.SetLogLevel(level)

	e, err := engine.New(engine.Config{Config: cfg, Path: path})
	if err != nil {
		core.LogFatal("initialize engine: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		core.LogInfo("signal received, closing window")
		e.Close()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
