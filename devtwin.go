package main

import (
	"os"

	"k8s.io/component-base/logs"

	"github.com/jwzl/devtwin/cmd"
)

func main() {
	command := cmd.NewAppCommand()
	logs.InitLogs()

	err := command.Execute()
	logs.FlushLogs()
	if err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
