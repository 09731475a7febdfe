package main

import "github.com/mcoot/wordsync/internal/cli"

func main() {
	cli.Execute()
}
