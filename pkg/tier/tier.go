package tier

// Tier is the subscription level a user holds.
type Tier string

// AccessLevel is the minimum audience a post is published for.
type AccessLevel string

const (
	None Tier = "none"
	Free Tier = "free"
	Paid Tier = "paid"
)

const (
	AccessPublic AccessLevel = "public"
	AccessFree   AccessLevel = "free"
	AccessPaid   AccessLevel = "paid"
)

var tierRanks = map[Tier]int{
	None: 0,
	Free: 1,
	Paid: 2,
}

var accessRanks = map[AccessLevel]int{
	AccessPublic: 0,
	AccessFree:   1,
	AccessPaid:   2,
}

// Normalize maps unknown or empty tiers to None so that missing or invalid
// credentials always degrade to public-only visibility.
func Normalize(t Tier) Tier {
	if _, ok := tierRanks[t]; !ok {
		return None
	}
	return t
}

// CanAccess reports whether a user on the given tier may view content at the
// given access level. Unknown tiers rank as none; unknown access levels are
// never satisfied.
func CanAccess(t Tier, level AccessLevel) bool {
	rank, ok := accessRanks[level]
	if !ok {
		return false
	}
	return tierRanks[Normalize(t)] >= rank
}

// VisibleLevels returns the access levels a tier may list, lowest first.
func VisibleLevels(t Tier) []AccessLevel {
	levels := []AccessLevel{AccessPublic, AccessFree, AccessPaid}
	visible := make([]AccessLevel, 0, len(levels))
	for _, level := range levels {
		if CanAccess(t, level) {
			visible = append(visible, level)
		}
	}
	return visible
}

// ValidAccessLevel reports whether level is one of public, free or paid.
func ValidAccessLevel(level AccessLevel) bool {
	_, ok := accessRanks[level]
	return ok
}
