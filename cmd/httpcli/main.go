package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fzft/go-coro-httpd/cmd"
)

func main() {
	cfg := cmd.DefaultHttpCliCfg()
	fs := flag.NewFlagSet("httpcli", flag.ExitOnError)
	fs.StringVar(&cfg.HostIp, "h", cfg.HostIp, "server hostname")
	fs.IntVar(&cfg.HostPort, "p", cfg.HostPort, "server port")
	fs.DurationVar(&cfg.Timeout, "t", cfg.Timeout, "connect and response timeout")

	cli := cmd.NewHttpCli(cfg)
	fs.Usage = func() { cli.Usage(os.Stderr) }
	_ = fs.Parse(os.Args[1:])

	if err := cli.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
