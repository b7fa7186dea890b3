package main

import (
	"os"

	"github.com/jdollar/chomik/internal/commands"
	"github.com/jdollar/chomik/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	conf, err := config.NewConfiguration()
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(conf.Level())

	app := &cli.App{
		Name:     "chomik",
		Usage:    "Cli tool to manage files and folders on chomikuj.pl",
		Commands: commands.All(conf),
	}

	err = app.Run(os.Args)
	if err != nil {
		logrus.Fatal(err)
	}
}
