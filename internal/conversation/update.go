package conversation

import "sort"

// UpdateKind classifies how a render state differs from its predecessor.
type UpdateKind int

const (
	UpdateKindFullReload UpdateKind = iota
	UpdateKindIncremental
)

func (k UpdateKind) String() string {
	if k == UpdateKindIncremental {
		return "incremental"
	}
	return "full_reload"
}

// ScrollInstructionKind is a resolved scroll action.
type ScrollInstructionKind int

const (
	ScrollInstructionNone ScrollInstructionKind = iota
	ScrollInstructionToBottom
	ScrollInstructionToIndex
	ScrollInstructionKeepContinuity
)

func (k ScrollInstructionKind) String() string {
	switch k {
	case ScrollInstructionToBottom:
		return "to_bottom"
	case ScrollInstructionToIndex:
		return "to_index"
	case ScrollInstructionKeepContinuity:
		return "keep_continuity"
	default:
		return "none"
	}
}

// ScrollInstruction is a ScrollAction resolved against a render state.
type ScrollInstruction struct {
	Kind           ScrollInstructionKind
	Index          int
	ScreenFraction float64
	Alignment      ScrollAlignment
}

// UpdateToken is the consumer's scroll snapshot taken right before an update
// is applied. It lets the consumer restore continuity afterwards.
type UpdateToken struct {
	ScrollOffset        int
	ContinuityAnchorID  string
	AnchorOffset        int
	WasScrolledToBottom bool
}

// Update pairs a new render state with the request that produced it and a
// diff against the previous state. It is consumed once.
type Update struct {
	RenderState     *RenderState
	PrevRenderState *RenderState
	Request         LoadRequest
	Kind            UpdateKind
	Added           []string
	Removed         []string
	Updated         []string
	Moved           []string
	Scroll          ScrollInstruction
	Stats           LoadStats
}

// IsEmpty reports whether the update changes nothing visible.
func (u *Update) IsEmpty() bool {
	return len(u.Added) == 0 && len(u.Removed) == 0 && len(u.Updated) == 0 && len(u.Moved) == 0
}

// diffItems classifies item ids between two item lists. Updated items keep
// their id but carry a new payload; moved items changed relative order.
func diffItems(prev, next []RenderItem) (added, removed, updated, moved []string) {
	prevIndex := make(map[string]int, len(prev))
	for i, item := range prev {
		prevIndex[item.ID] = i
	}
	nextIDs := make(map[string]struct{}, len(next))

	var common []string
	var commonPrevPos []int
	for _, item := range next {
		nextIDs[item.ID] = struct{}{}
		i, ok := prevIndex[item.ID]
		if !ok {
			added = append(added, item.ID)
			continue
		}
		old := prev[i]
		if old.Payload != item.Payload || old.Version != item.Version {
			updated = append(updated, item.ID)
		}
		common = append(common, item.ID)
		commonPrevPos = append(commonPrevPos, i)
	}
	for _, item := range prev {
		if _, ok := nextIDs[item.ID]; !ok {
			removed = append(removed, item.ID)
		}
	}

	stable := longestIncreasing(commonPrevPos)
	for i, id := range common {
		if !stable[i] {
			moved = append(moved, id)
		}
	}
	return added, removed, updated, moved
}

// longestIncreasing marks the members of one longest strictly increasing
// subsequence of seq.
func longestIncreasing(seq []int) []bool {
	keep := make([]bool, len(seq))
	if len(seq) == 0 {
		return keep
	}
	tails := make([]int, 0, len(seq))
	parent := make([]int, len(seq))
	for i, v := range seq {
		pos := sort.Search(len(tails), func(j int) bool { return seq[tails[j]] >= v })
		if pos > 0 {
			parent[i] = tails[pos-1]
		} else {
			parent[i] = -1
		}
		if pos == len(tails) {
			tails = append(tails, i)
		} else {
			tails[pos] = i
		}
	}
	for i := tails[len(tails)-1]; i >= 0; i = parent[i] {
		keep[i] = true
	}
	return keep
}
