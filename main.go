// Command amp-monitor watches live AMP traffic in a terminal, reading
// the server-sent-events stream an ampd instance exposes via -http.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/goamp/amp/tui"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("amp-monitor", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "amp-monitor — watch AMP traffic in real-time\n\nUsage:\n  amp-monitor [flags] <addr>\n\n"+
			"<addr> is an ampd -http address or full /events URL, e.g. localhost:8080 or http://localhost:8080/events\n\nFlags:\n")
		fs.PrintDefaults()
	}

	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("amp-monitor %s\n", version)
		return
	}

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	if err := monitor(fs.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func monitor(addr string) error {
	target := eventsURL(addr)
	p := tea.NewProgram(tui.New(target), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// eventsURL normalizes addr into a full /events URL: an address without a
// scheme gets http:// prefixed, and "/events" is appended unless the
// address already ends with it (any other path is kept and extended).
func eventsURL(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if strings.HasSuffix(addr, "/events") {
		return addr
	}
	return strings.TrimRight(addr, "/") + "/events"
}
