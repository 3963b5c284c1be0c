package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/measure"
	"github.com/ayusman/handruler/internal/session"
)

// Pending is shown in place of a length that has not settled yet.
const Pending = "--"

// Prompts returns the instruction lines for the current workflow state.
func Prompts(status session.Status) []string {
	switch status.State {
	case session.Uncalibrated:
		return []string{
			"Place the card in the green box",
			"Press 'c' to calibrate",
		}
	case session.CalibratedIdle:
		return []string{
			fmt.Sprintf("Hand #%d", status.HandIndex),
			"Press 'm' to start measuring",
		}
	case session.Measuring:
		lines := []string{
			fmt.Sprintf("Measuring hand #%d (%d/%d stable)", status.HandIndex, status.Stable, status.Total),
			"Press 's' to save",
		}
		if !status.HandDetected {
			lines[1] = "No hand detected"
		}
		return lines
	}
	return nil
}

// PanelLines formats a snapshot for the info panel: the forearm first, then
// the palm, then each finger with its segments from base to tip. Lengths
// carry one decimal and the snapshot units. A nil snapshot yields no lines.
func PanelLines(snap *measure.Snapshot) []string {
	if snap == nil {
		return nil
	}
	units := snap.Units

	lines := []string{
		fmt.Sprintf("Forearm: %s", withUnits(snap.Forearm.Length, units)),
		fmt.Sprintf("Palm W/L/S: %s / %s / %s %s",
			Format(snap.Palm.Width), Format(snap.Palm.Length), Format(snap.Palm.Span), units),
	}

	for _, f := range detector.Fingers {
		dims := snap.Fingers[f]
		segs := make([]string, len(dims.Segments))
		for i, s := range dims.Segments {
			segs[i] = Format(s)
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s)",
			title(f.String()), withUnits(dims.Total, units), strings.Join(segs, ", ")))
	}
	return lines
}

// Format renders a stable length with one decimal, or Pending.
func Format(l measure.Length) string {
	if !l.Stable {
		return Pending
	}
	return strconv.FormatFloat(l.Value, 'f', 1, 64)
}

func withUnits(l measure.Length, units string) string {
	if !l.Stable || units == "" {
		return Format(l)
	}
	return Format(l) + " " + units
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
