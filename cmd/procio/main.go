package main

import "github.com/spawnexec/procio/internal/cli"

func main() {
	cli.Execute()
}
