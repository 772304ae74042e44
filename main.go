package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/jhalttu/talkscan/cmd"
	"github.com/jhalttu/talkscan/config"
	"github.com/jhalttu/talkscan/types"
)

var Version = types.DefaultVersion

type CLI struct {
	Config  string           `short:"c" help:"Path to a talkscan config file" type:"path"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Scan  cmd.ScanCmd  `cmd:"" help:"Detect active speakers in a video and emit a JSON report"`
	Probe cmd.ProbeCmd `cmd:"" help:"Inspect a video's stream metadata"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("talkscan"),
		kong.Description("Active speaker detection for video files, powered by TalkNet."),
		kong.Vars{"version": Version},
	)

	log := logrus.New()
	log.SetOutput(os.Stderr)

	cfg, err := config.Load(cli.Config)
	kctx.FatalIfErrorf(err)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if cli.Verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	appCtx := &types.AppContext{
		Version: Version,
		Config:  cfg,
		Log:     log,
	}
	kctx.FatalIfErrorf(kctx.Run(appCtx))
}
