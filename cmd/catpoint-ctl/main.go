// Command catpoint-ctl controls a running catpoint-server.
package main

import "github.com/oshokin/catpoint/cmd/catpoint-ctl/cmd"

func main() {
	cmd.Execute()
}
