package main

import "worldclock-fx/internal/cli"

func main() {
	cli.Execute()
}
