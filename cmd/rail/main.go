package main

import "github.com/RAIL-Suite/RAIL-sub001/src/cli"

func main() {
	cli.Execute()
}
