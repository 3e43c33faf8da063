package main

import "github.com/peter-kozarec/declinefit/internal/cli"

func main() {
	cli.Execute()
}
