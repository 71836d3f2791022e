package main

import "github.com/covenant-lang/covenant/pkg/cli"

func main() {
	cli.Entry()
}
