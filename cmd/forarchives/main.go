package main

import (
	"forarchives/cmd/forarchives/commands"
	"forarchives/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
