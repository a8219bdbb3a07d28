package main

import "github.com/ramiqadoumi/leadflow/services/seeder/cli"

func main() {
	cli.Execute()
}
