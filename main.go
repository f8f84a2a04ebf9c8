package main

import "github.com/AllegroVivo/PartyBusBot/cmd"

func main() {
	cmd.Execute()
}
