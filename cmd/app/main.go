// entry point to app :)
package main

import (
	"context"
	"os"

	"github.com/ds124wfegd/crossedpaths/internal/cli"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
