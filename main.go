package main

import (
	"context"
	"flag"
	"lingotutor/app/client/languagetool"
	"lingotutor/app/client/speechkit"
	"lingotutor/app/client/tavily"
	"lingotutor/app/config"
	"lingotutor/app/server"
	"lingotutor/app/service/agent"
	"lingotutor/app/service/console"
	"lingotutor/app/service/conversation"
	"lingotutor/app/service/gate"
	"lingotutor/app/service/history"
	"lingotutor/app/service/memory"
	"lingotutor/app/service/queue"
	"lingotutor/app/service/speech"
	"lingotutor/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	consoleMode := flag.Bool("console", false, "run an interactive console instead of the HTTP server")
	flag.Parse()

	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, languagetool.NewClient)
	do.Provide(di, tavily.NewClient)
	do.Provide(di, speechkit.NewClient)
	do.Provide(di, memory.New)
	do.Provide(di, history.New)
	do.Provide(di, gate.New)
	do.Provide(di, agent.New)
	do.Provide(di, conversation.New)
	do.Provide(di, speech.New)
	do.Provide(di, queue.New)
	do.Provide(di, console.New)
	do.Provide(di, server.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	if *consoleMode {
		do.MustInvoke[*console.Service](di).Run(appCtx)
		return
	}

	do.MustInvoke[*server.Service](di).Run(appCtx)
}
