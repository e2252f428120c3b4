// apmz is a command-line companion for the apmz agent: it inspects the
// effective configuration and checks connectivity to an APM server.
package main

import "github.com/zoobzio/apmz/internal/cli"

func main() {
	cli.Execute()
}
