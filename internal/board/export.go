// ABOUTME: Plain-text ops brief rendered from a board snapshot
// ABOUTME: Section counts always equal the snapshot list lengths

package board

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // brief time zone must load on hosts without zoneinfo

	"github.com/2389/opsboard/internal/store"
)

// BriefShiftLimit is how many handovers the brief lists.
const BriefShiftLimit = 5

// DefaultTimeZone is used for the brief when none is configured.
const DefaultTimeZone = "Europe/London"

const briefWidth = 60

var (
	heavyRule = strings.Repeat("═", briefWidth)
	lightRule = strings.Repeat("─", briefWidth)
)

// RenderBrief formats snap as a printable brief generated at now, shown in loc.
func RenderBrief(snap *Snapshot, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	settings := snap.Settings

	name := settingOr(settings, "restaurant_name", "Kitchen")
	var b strings.Builder

	fmt.Fprintf(&b, "%s · CHEF OPS BRIEF\n", strings.ToUpper(name))
	if addr := settings["address"]; addr != "" {
		b.WriteString(addr + "\n")
	}
	fmt.Fprintf(&b, "Generated: %s\n", now.In(loc).Format("02/01/2006, 15:04:05"))
	b.WriteString(heavyRule + "\n\n")

	fmt.Fprintf(&b, "FLOOR LEAD: %s\n", settingOr(settings, "floor_lead", "N/A"))
	fmt.Fprintf(&b, "CONTACT: %s\n", settingOr(settings, "phone", "N/A"))

	section(&b, fmt.Sprintf("OUT OF STOCK (%d)", len(snap.Out)), stockLines(snap.Out))
	section(&b, fmt.Sprintf("RUNNING LOW (%d)", len(snap.Low)), stockLines(snap.Low))

	maint := make([]string, 0, len(snap.Maintenance))
	for _, t := range snap.Maintenance {
		maint = append(maint, itemLine(t.Item, t.Detail))
	}
	section(&b, fmt.Sprintf("MAINTENANCE (%d)", len(snap.Maintenance)), maint)

	notes := make([]string, 0, len(snap.Notes))
	for _, n := range snap.Notes {
		notes = append(notes, "• "+n.Text)
	}
	section(&b, "NOTES", notes)

	shifts := make([]string, 0, BriefShiftLimit)
	for i, e := range snap.ShiftLog {
		if i == BriefShiftLimit {
			break
		}
		line := fmt.Sprintf("• %s: %s", e.ShiftType, e.Focus)
		if e.ETA != "" {
			line += " → " + e.ETA
		}
		shifts = append(shifts, line)
	}
	section(&b, "SHIFT HANDOVERS", shifts)

	b.WriteString("\n" + heavyRule)
	return b.String()
}

// BriefFilename is the attachment name for a brief generated at now.
func BriefFilename(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return "opsboard-brief-" + now.In(loc).Format("2006-01-02") + ".txt"
}

func section(b *strings.Builder, title string, lines []string) {
	b.WriteString("\n" + lightRule + "\n")
	b.WriteString(title + "\n")
	b.WriteString(lightRule + "\n")
	if len(lines) == 0 {
		b.WriteString("None\n")
		return
	}
	b.WriteString(strings.Join(lines, "\n") + "\n")
}

func stockLines(items []*store.StockItem) []string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, itemLine(it.Item, it.Detail))
	}
	return lines
}

func itemLine(item, detail string) string {
	if detail == "" {
		return "• " + item
	}
	return "• " + item + ": " + detail
}

func settingOr(settings map[string]string, key, def string) string {
	if v := settings[key]; v != "" {
		return v
	}
	return def
}
