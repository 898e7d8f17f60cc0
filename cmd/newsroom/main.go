package main

import (
	"newsroom/cmd/handlers"
	"newsroom/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
