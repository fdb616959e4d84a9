package main

import "github.com/juanfuturochile/appstore.koplugin/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
