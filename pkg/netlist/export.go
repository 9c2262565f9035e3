package netlist

import (
	"fmt"
	"strings"

	"github.com/edp1096/toy-mna/pkg/device"
)

// Export writes devices back as a netlist that Parse reads to the same
// parameters.
func Export(title string, devices []device.Device, tran *TranParam) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "* %s\n", title)
	for _, dev := range devices {
		name := dev.GetName()
		if name == "" || !strings.EqualFold(name[:1], dev.GetType()) {
			name = dev.GetType() + name
		}

		fields := []string{name}
		fields = append(fields, dev.GetNodeNames()...)
		fields = append(fields, dev.SerializeParameters()...)
		sb.WriteString(strings.Join(fields, " "))
		sb.WriteByte('\n')
	}

	if tran != nil {
		fmt.Fprintf(&sb, ".tran %g %g", tran.TStep, tran.TStop)
		if tran.TStart != 0 {
			fmt.Fprintf(&sb, " %g", tran.TStart)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(".end\n")

	return sb.String()
}
