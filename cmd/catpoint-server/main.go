// Command catpoint-server runs the home security controller.
package main

import "github.com/oshokin/catpoint/cmd/catpoint-server/cmd"

func main() {
	cmd.Execute()
}
