package main

import (
	"bookgraph/internal/server"
	"bookgraph/internal/util"
	"bookgraph/pkg/logger"
	"bookgraph/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
