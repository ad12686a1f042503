package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli"

	"logpipe/internal/avro"
	"logpipe/internal/config"
)

func main() {
	app := cli.NewApp()
	app.Name = "logpipe"
	app.Usage = "inspect the logpipe configuration and wire contracts"
	app.Commands = []cli.Command{
		{
			Name:  "config",
			Usage: "print the resolved configuration as JSON",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config-file",
					Usage: "path to a YAML config file layered under the environment",
				},
			},
			Action: func(c *cli.Context) error {
				settings, err := config.Load(c.String("config-file"))
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(settings, "", "    ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			},
		},
		{
			Name:  "schema",
			Usage: "print the Avro schema published to the schema registry",
			Action: func(c *cli.Context) error {
				fmt.Println(avro.LogSchemaV1)
				return nil
			},
		},
		{
			Name:  "modes",
			Usage: "list configuration mode presets and compatibility modes",
			Action: func(c *cli.Context) error {
				fmt.Println("modes:")
				for _, m := range config.Modes() {
					fmt.Printf("  %s\n", m)
				}
				fmt.Println("schema compatibility:")
				for _, m := range avro.CompatibilityModes {
					fmt.Printf("  %s\n", m)
				}
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
