// Package main provides the graspnet CLI: training, evaluation and
// single-image grasp detection.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const version = "v0.1.0-dev"

type command struct {
	name  string
	usage string
	run   func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"train", "Train a network on the Cornell dataset", runTrain},
	{"eval", "Score a saved model on the validation split", runEval},
	{"detect", "Detect grasps in a single depth and/or RGB image", runDetect},
	{"version", "Show version", runVersion},
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(os.Args[2:], os.Stdout); err != nil {
				logrus.WithField("command", c.name).Errorf("%+v", err)
				os.Exit(1)
			}
			return
		}
	}
	usage(os.Stderr)
	os.Exit(2)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "graspnet %s - grasp rectangle prediction\n\n", version)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(w, "\nRun 'graspnet <command> -h' for command flags.")
}

func runVersion(_ []string, stdout io.Writer) error {
	_, err := fmt.Fprintf(stdout, "graspnet %s\n", version)
	return err
}
