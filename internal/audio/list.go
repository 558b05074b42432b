package audio

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// PrintDevices writes a table of every device with its capabilities.
// defaultIndex marks the OS default input; pass -1 when there is none.
func PrintDevices(w io.Writer, devices []DeviceInfo, defaultIndex int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tIN\tOUT\tRATE\tNOTES")
	for _, d := range devices {
		var notes []string
		if d.Index == defaultIndex {
			notes = append(notes, "default")
		}
		if !d.IsInput() {
			notes = append(notes, "output-only")
		} else if IsLoopback(d.Name) {
			notes = append(notes, "loopback")
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.0f\t%s\n",
			d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, strings.Join(notes, ","))
	}
	return tw.Flush()
}
