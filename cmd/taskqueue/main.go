package main

import "github.com/ramiqadoumi/go-task-queue/services/taskqueue/cli"

func main() {
	cli.Execute()
}
