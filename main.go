package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fansqz/jdwp-debugger/config"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// 定义版本号
const Version = "1.0.1"

func main() {
	// .env不存在是正常情况
	_ = godotenv.Load()

	app := &cli.App{
		Name:           "jdwp-debugger",
		Usage:          "compile, launch and break into a java program over JDWP",
		Version:        Version,
		ExitErrHandler: exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "yaml config file",
				EnvVars: []string{"JDWP_DEBUGGER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-path",
				Usage: "override log file, '-' for stderr",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			SetupLogger(cfg.Log)
			c.App.Metadata = map[string]interface{}{"config": cfg}
			return nil
		},
		After: func(c *cli.Context) error {
			CloseLogger()
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			dapCommand(),
			httpCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-path") {
		cfg.Log.Path = c.String("log-path")
		if cfg.Log.Path == "-" {
			cfg.Log.Path = ""
		}
	}
	return cfg, nil
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

// exitErrHandler 保留cli.Exit中的退出码
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
