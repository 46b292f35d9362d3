package main

import (
	"os"

	"mpdcore/internal/command"
	"mpdcore/internal/util"
)

func main() {
	if err := command.Execute(); err != nil {
		util.Logger.Error("程序执行失败: %s", err.Error())
		os.Exit(1)
	}
}
