package main

import "github.com/ramiqadoumi/go-task-queue/services/patterns/cli"

func main() {
	cli.Execute()
}
