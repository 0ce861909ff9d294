package main

import "github.com/MCIKIDS/mci.kids/internal/cli"

func main() {
	cli.Execute()
}
