package main

import "github.com/ramiqadoumi/go-task-queue/services/dashboard/cli"

func main() {
	cli.Execute()
}
