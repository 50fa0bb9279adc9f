package main

import "forecast-explorer/internal/cli"

func main() {
	cli.Execute()
}
