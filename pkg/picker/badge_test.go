package picker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beam-cloud/kbpicker/pkg/types"
)

func TestBadge(t *testing.T) {
	tests := []struct {
		name string
		item types.DriveItem
		want BadgeInfo
	}{
		{"pending", types.DriveItem{Status: types.StatusPending}, BadgeInfo{"Pending", ToneSecondary}},
		{"pending wins over indexed", types.DriveItem{Status: types.StatusPending, Indexed: true}, BadgeInfo{"Pending", ToneSecondary}},
		{"indexed", types.DriveItem{Status: types.StatusIndexed, Indexed: true}, BadgeInfo{"Indexed", ToneSuccess}},
		{"indexed flag without status", types.DriveItem{Indexed: true}, BadgeInfo{"Indexed", ToneSuccess}},
		{"deindexed", types.DriveItem{Status: types.StatusDeindexed}, BadgeInfo{"De-indexed", ToneDestructive}},
		{"failed", types.DriveItem{Status: types.StatusFailed}, BadgeInfo{"Not indexed", ToneOutline}},
		{"no status", types.DriveItem{}, BadgeInfo{"Not indexed", ToneOutline}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Badge(tt.item))
		})
	}
}
