package netlist

import (
	"fmt"

	"github.com/edp1096/toy-mna/pkg/device"
)

// CreateDevice builds the element with default parameters and feeds it the
// element's tokens.
func CreateDevice(elem Element) (device.Device, error) {
	dev, err := device.New(elem.Type, elem.Name, elem.Nodes)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", elem.Name, err)
	}
	dev.DeserializeParameters(elem.Tokens)
	return dev, nil
}
