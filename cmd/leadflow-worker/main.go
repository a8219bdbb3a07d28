package main

import "github.com/ramiqadoumi/leadflow/services/worker/cli"

func main() {
	cli.Execute()
}
