package picker

import "github.com/beam-cloud/kbpicker/pkg/types"

type Tone string

const (
	ToneSecondary   Tone = "secondary"
	ToneSuccess     Tone = "success"
	ToneDestructive Tone = "destructive"
	ToneOutline     Tone = "outline"
)

type BadgeInfo struct {
	Label string
	Tone  Tone
}

// Badge labels an item's indexing state. Pending wins over indexed.
func Badge(item types.DriveItem) BadgeInfo {
	switch {
	case item.Status == types.StatusPending:
		return BadgeInfo{Label: "Pending", Tone: ToneSecondary}
	case item.Indexed:
		return BadgeInfo{Label: "Indexed", Tone: ToneSuccess}
	case item.Status == types.StatusDeindexed:
		return BadgeInfo{Label: "De-indexed", Tone: ToneDestructive}
	}
	return BadgeInfo{Label: "Not indexed", Tone: ToneOutline}
}
