package main

import (
	"auctionscout/cmd/auctionscout/commands"
	"auctionscout/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
