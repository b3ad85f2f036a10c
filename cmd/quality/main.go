package main

import "github.com/ramiqadoumi/go-task-queue/services/quality/cli"

func main() {
	cli.Execute()
}
