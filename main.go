package main

import "github.com/frahmantamala/fleet-ledger/cmd"

func main() {
	cmd.Execute()
}
