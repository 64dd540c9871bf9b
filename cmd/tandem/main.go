package main

import "github.com/tessro/tandem/internal/cli"

func main() {
	cli.Execute()
}
