package main

import "github.com/fyerfyer/boundq/cmd/qcli/cmd"

func main() {
	cmd.Execute()
}
