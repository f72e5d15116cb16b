// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
)

// ListDevices writes information about every device the host reports.
// For each device, it shows:
// - Index, name and kind (Input/Output/Input+Output)
// - Channel counts
// - Default sample rate
// - Whether it is the current default input or output
func ListDevices(w io.Writer, host Host) error {
	devices, err := host.Devices()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices (%s)\n\n", host.Name())

	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found.")
		return nil
	}

	for i, device := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)%s\n", i, device.Name, device.Kind(), defaultMarker(device))
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", device.MaxInputChannels, device.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		if device.ID != "" {
			fmt.Fprintf(w, "    ID: %s\n", device.ID)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func defaultMarker(d Device) string {
	switch {
	case d.IsDefaultInput && d.IsDefaultOutput:
		return " [default input/output]"
	case d.IsDefaultInput:
		return " [default input]"
	case d.IsDefaultOutput:
		return " [default output]"
	default:
		return ""
	}
}
