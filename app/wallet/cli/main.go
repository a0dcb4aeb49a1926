package main

import "github.com/adamwoolhether/virtualnode/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
