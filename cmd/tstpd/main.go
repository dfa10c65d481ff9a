// Command tstpd runs a Trustful SpaceTime Protocol node: its MAC duty
// cycle, network pipeline, and Smart Data bindings, configured from a
// YAML file and CLI flags the way ptp4u and ptpcheck are.
package main

import "github.com/trustfulmesh/tstp/cmd/tstpd/cmd"

func main() {
	cmd.Execute()
}
