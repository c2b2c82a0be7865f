package rr

import "sort"

// VoteCounts tallies valid votes for one image.
type VoteCounts struct {
	OK  int `json:"OK"`
	NOK int `json:"NOK"`
}

// ConfusionItem ranks one image by how split its votes are.
type ConfusionItem struct {
	Image          ImageKey   `json:"image"`
	ImageName      string     `json:"image_name"`
	Votes          VoteCounts `json:"vote_counts"`
	TotalResponses int        `json:"total_responses"`
	// Discordance is 1 - max(OK, NOK)/total: 0 when every vote agrees,
	// 0.5 when the votes are split evenly.
	Discordance float64 `json:"discordance"`
}

// MaxDiscordance is the discordance of an evenly split image.
const MaxDiscordance = 0.5

// ConfusionRanking pools every valid vote for each image across operators
// and repetitions and orders images by discordance, highest first. Ties
// keep first-seen order. Images with no valid vote are left out.
func ConfusionRanking(records []Record) []ConfusionItem {
	index := make(map[ImageKey]int)
	items := []ConfusionItem{}
	for _, rec := range records {
		if !rec.Answer.Valid() {
			continue
		}
		i, ok := index[rec.Image]
		if !ok {
			i = len(items)
			index[rec.Image] = i
			items = append(items, ConfusionItem{Image: rec.Image, ImageName: rec.ImageName})
		}
		switch rec.Answer {
		case VerdictOK:
			items[i].Votes.OK++
		case VerdictNOK:
			items[i].Votes.NOK++
		}
		items[i].TotalResponses++
	}

	for i := range items {
		items[i].Discordance = Discordance(items[i].Votes)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Discordance > items[j].Discordance
	})
	return items
}

// Discordance returns 1 - max(OK, NOK)/total, or 0 with no votes.
func Discordance(c VoteCounts) float64 {
	total := c.OK + c.NOK
	if total == 0 {
		return 0
	}
	top := c.OK
	if c.NOK > top {
		top = c.NOK
	}
	return 1 - float64(top)/float64(total)
}
