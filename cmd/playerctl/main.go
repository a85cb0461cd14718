package main

import "github.com/mcoot/playeraccounts/internal/cli"

func main() {
	cli.Execute()
}
