package game

// Tier is one of the five ordered ranking bands.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// TierInfo is one row of the fixed tier table.
type TierInfo struct {
	// Name is the tier identifier.
	Name Tier `json:"name"`
	// Label is the display label shown next to the tier name.
	Label string `json:"label"`
	// MinXP and MinStreak are the floors for holding this tier.
	MinXP     int `json:"minXp"`
	MinStreak int `json:"minStreak"`
	// PromotionXP and PromotionStreak are the thresholds for advancing to
	// the next tier. Both are zero at the max tier.
	PromotionXP     int `json:"promotionXp,omitempty"`
	PromotionStreak int `json:"promotionStreak,omitempty"`
}

// Tiers is the fixed tier table, ordered lowest to highest. The thresholds
// are configuration data and must not be recomputed at runtime.
var Tiers = []TierInfo{
	{Name: TierBronze, Label: "🥉", MinXP: 0, MinStreak: 0, PromotionXP: 500, PromotionStreak: 3},
	{Name: TierSilver, Label: "🥈", MinXP: 500, MinStreak: 3, PromotionXP: 2000, PromotionStreak: 7},
	{Name: TierGold, Label: "🥇", MinXP: 2000, MinStreak: 7, PromotionXP: 5000, PromotionStreak: 14},
	{Name: TierPlatinum, Label: "💎", MinXP: 5000, MinStreak: 14, PromotionXP: 15000, PromotionStreak: 30},
	{Name: TierDiamond, Label: "👑", MinXP: 15000, MinStreak: 30},
}

// TierIndex returns the position of t in the tier order, or 0 (bronze) for
// unknown values so a corrupted record degrades to the lowest band.
func TierIndex(t Tier) int {
	for i, info := range Tiers {
		if info.Name == t {
			return i
		}
	}
	return 0
}

// TierTable returns the TierInfo row for t.
func TierTable(t Tier) TierInfo {
	return Tiers[TierIndex(t)]
}

// NextTier returns the tier above t, or "" at the max tier.
func NextTier(t Tier) Tier {
	idx := TierIndex(t)
	if idx >= len(Tiers)-1 {
		return ""
	}
	return Tiers[idx+1].Name
}

// Outranks reports whether a is strictly higher than b.
func (a Tier) Outranks(b Tier) bool {
	return TierIndex(a) > TierIndex(b)
}
