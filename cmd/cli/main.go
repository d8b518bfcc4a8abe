package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.viam.com/rdk/logging"
	robotmodel "robotmodel"
)

func main() {
	app := &cli.App{
		Name:  "robotmodel",
		Usage: "load a robot model description and query it through the binding surface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "rdk kinematics .json file; the embedded panda model is used when empty",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "override the model name",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: realMain,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func realMain(c *cli.Context) error {
	logger := logging.NewLogger("robotmodel-cli")
	if c.Bool("debug") {
		logger.SetLevel(logging.DEBUG)
	}

	cfg := &robotmodel.Config{
		ModelFile: c.String("file"),
		ModelName: c.String("name"),
	}
	if _, _, err := cfg.Validate("flags"); err != nil {
		return err
	}
	model, err := cfg.LoadModel(logger)
	if err != nil {
		return err
	}

	surface := robotmodel.NewSurface(logger)
	defer surface.Close()

	h := surface.New()
	defer surface.Delete(h)
	if err := surface.Assign(h, model); err != nil {
		return err
	}

	name, err := surface.Name(h)
	if err != nil {
		return err
	}
	frame, err := surface.ModelFrame(h)
	if err != nil {
		return err
	}
	rootJoint, err := surface.RootJointName(h)
	if err != nil {
		return err
	}
	empty, err := surface.IsEmpty(h)
	if err != nil {
		return err
	}
	info, err := surface.PrintModelInfo(h)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "name:        %s\n", name)
	fmt.Fprintf(c.App.Writer, "model frame: %s\n", frame)
	fmt.Fprintf(c.App.Writer, "root joint:  %s\n", rootJoint)
	fmt.Fprintf(c.App.Writer, "empty:       %t\n\n", empty)
	fmt.Fprint(c.App.Writer, info)
	return nil
}
