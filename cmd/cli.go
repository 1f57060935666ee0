package cmd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

var (
	HttpCliVersion = "0.1.0"

	HttpCliHisFileEnv     = "HTTPCLI_HISTFILE"
	HttpCliHisFileDefault = ".httpcli_history"
	HttpCliDefaultTimeout = 30 * time.Second
)

var errEmptyRequest = errors.New("empty request")

type HttpCliCfg struct {
	HostIp   string
	HostPort int
	Timeout  time.Duration
	Version  string // protocol version added to two-word request lines

	prompt string
}

func DefaultHttpCliCfg() *HttpCliCfg {
	return &HttpCliCfg{
		HostIp:   "127.0.0.1",
		HostPort: 8080,
		Timeout:  HttpCliDefaultTimeout,
		Version:  "HTTP/1.1",
	}
}

func (c *HttpCliCfg) addr() string {
	return net.JoinHostPort(c.HostIp, strconv.Itoa(c.HostPort))
}

type HttpCli struct {
	config *HttpCliCfg
	client *Client
	in     io.Reader
	out    io.Writer
}

func NewHttpCli(config *HttpCliCfg) *HttpCli {
	if config == nil {
		config = DefaultHttpCliCfg()
	}
	return &HttpCli{
		config: config,
		client: NewClient(config.addr(), config.Timeout),
		in:     os.Stdin,
		out:    os.Stdout,
	}
}

func (cli *HttpCli) Usage(w io.Writer) {
	fmt.Fprintf(w, `httpcli %s

Usage: httpcli [OPTIONS]
  -h <hostname>      Server hostname (default: 127.0.0.1).
  -p <port>          Server port (default: 8080).
  -t <timeout>       Connect and response timeout (default: 30s).

Interactive mode reads a request line, then header lines up to a blank line.
A two-word request line gets %s and a Host header appended. A line
"body <text>" sets the body and its Content-Length.
Commands: connect <host> <port>, clear, quit, exit.

When stdin is not a terminal it is sent verbatim and the raw reply printed.
History is kept in $%s or ~/%s.
`, HttpCliVersion, cli.config.Version, HttpCliHisFileEnv, HttpCliHisFileDefault)
}

// Run starts the REPL on a terminal and pipes stdin otherwise.
func (cli *HttpCli) Run() error {
	if f, ok := cli.in.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return cli.client.Pipe(cli.in, cli.out)
	}
	return cli.repl()
}

func (cli *HttpCli) refreshPrompt() {
	cli.config.prompt = cli.client.Addr() + "> "
}

func (cli *HttpCli) repl() error {
	line := newLineEditor()
	defer line.Close()

	historyFile := getDotfilePath(HttpCliHisFileEnv, HttpCliHisFileDefault)
	if historyFile != "" {
		_ = line.HistoryLoad(historyFile)
	}
	saveHistory := func(entry string) {
		line.AppendHistory(entry)
		if historyFile != "" {
			_ = line.HistorySave(historyFile)
		}
	}

	cli.refreshPrompt()
	for {
		first, err := line.Prompt(cli.config.prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		first = strings.TrimSpace(first)
		if first == "" {
			continue
		}
		saveHistory(first)

		argv := strings.Fields(first)
		switch {
		case strings.EqualFold(argv[0], "quit"), strings.EqualFold(argv[0], "exit"):
			return cli.client.Close()

		case len(argv) == 1 && strings.EqualFold(argv[0], "clear"):
			_ = clearScreen(cli.out)
			continue

		case len(argv) == 3 && strings.EqualFold(argv[0], "connect"):
			port, err := strconv.Atoi(argv[2])
			if err != nil {
				fmt.Fprintln(cli.out, "Invalid port number")
				continue
			}
			_ = cli.client.Close()
			cli.config.HostIp, cli.config.HostPort = argv[1], port
			cli.client = NewClient(cli.config.addr(), cli.config.Timeout)
			cli.refreshPrompt()
			if err := cli.client.Connect(); err != nil {
				fmt.Fprintf(cli.out, "Could not connect to %s: %v\n", cli.client.Addr(), err)
			}
			continue
		}

		lines := []string{first}
		for {
			l, err := line.Prompt("... ")
			if err != nil {
				return nil
			}
			if strings.TrimSpace(l) == "" {
				break
			}
			saveHistory(l)
			lines = append(lines, l)
		}

		raw, err := buildRequest(lines, cli.config.HostIp, cli.config.Version)
		if err != nil {
			fmt.Fprintf(cli.out, "(error) %v\n", err)
			continue
		}

		start := time.Now()
		reply, err := cli.client.Do(methodOf(raw), raw)
		if err != nil {
			fmt.Fprintf(cli.out, "(error) %v\n", err)
			continue
		}
		fmt.Fprintf(cli.out, "%s\n(%.2fs)\n", reply, time.Since(start).Seconds())
	}
}

// buildRequest turns a request line, header lines and an optional
// "body <text>" line into raw request bytes.
func buildRequest(lines []string, host, version string) ([]byte, error) {
	if len(lines) == 0 {
		return nil, errEmptyRequest
	}
	words := strings.Fields(lines[0])
	switch len(words) {
	case 0:
		return nil, errEmptyRequest
	case 1:
		return nil, fmt.Errorf("request line needs a method and a path: %q", lines[0])
	case 2:
		words = append(words, version)
	}

	var (
		headers []string
		body    string
		hasHost bool
		hasLen  bool
	)
	for _, l := range lines[1:] {
		if rest, ok := strings.CutPrefix(l, "body "); ok {
			body = rest
			continue
		}
		name, _, ok := strings.Cut(l, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("malformed header line: %q", l)
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "host":
			hasHost = true
		case "content-length":
			hasLen = true
		}
		headers = append(headers, l)
	}
	if !hasHost && words[len(words)-1] == "HTTP/1.1" {
		headers = append(headers, "Host: "+host)
	}
	if body != "" && !hasLen {
		headers = append(headers, "Content-Length: "+strconv.Itoa(len(body)))
	}

	var b strings.Builder
	b.WriteString(strings.Join(words, " "))
	b.WriteString("\r\n")
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String()), nil
}

// getDotfilePath returns the dotfile path from envOverride or the home
// directory. "/dev/null" in the environment disables the file.
func getDotfilePath(envOverride, dotFilename string) string {
	path := os.Getenv(envOverride)
	if path != "" {
		if path == "/dev/null" {
			return ""
		}
		return path
	}
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}
	return filepath.Join(home, dotFilename)
}
