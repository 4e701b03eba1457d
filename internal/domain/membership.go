package domain

import "math"

// Membership tiers and voucher catalog. Points accrue at PointsPerDollar on
// checkout; the tier is a pure function of the lifetime balance.

const PointsPerDollar = 1

type Tier struct {
	ID        string
	Label     string
	Headline  string
	MinPoints int
	MaxPoints int // math.MaxInt for the top tier
	Perks     []string
}

var Tiers = []Tier{
	{
		ID: "bronze", Label: "Bronze", Headline: "Get started",
		MinPoints: 0, MaxPoints: 499,
		Perks: []string{"Welcome bundle worth 200 pts", "Early access to weekly flyers", "Tiered points multiplier A-1"},
	},
	{
		ID: "silver", Label: "Silver", Headline: "Earn more rewards",
		MinPoints: 500, MaxPoints: 1499,
		Perks: []string{"Free delivery on orders over $35", "Birthday double points", "Tiered multiplier A-1.5"},
	},
	{
		ID: "gold", Label: "Gold", Headline: "Exclusive treatment",
		MinPoints: 1500, MaxPoints: math.MaxInt,
		Perks: []string{"Priority support", "Complimentary samples each month", "Tiered multiplier A-2"},
	},
}

type Voucher struct {
	ID          string
	Title       string
	Description string
	Cost        int
	Type        string // cashback | delivery
	Value       int
}

var Vouchers = []Voucher{
	{ID: "v_5_off", Title: "$5 Voucher", Description: "Get $5 off your next order", Cost: 500, Type: "cashback", Value: 5},
	{ID: "v_10_off", Title: "$10 Voucher", Description: "Get $10 off your next order", Cost: 1000, Type: "cashback", Value: 10},
	{ID: "v_25_off", Title: "$25 Voucher", Description: "Get $25 off your next order", Cost: 2000, Type: "cashback", Value: 25},
	{ID: "v_free_del", Title: "Free Delivery", Description: "Zero delivery fees on your next order", Cost: 300, Type: "delivery", Value: 0},
}

// TierForPoints returns the highest tier whose floor the balance reaches.
// Negative balances clamp to the first tier.
func TierForPoints(points int) Tier {
	if points < 0 {
		return Tiers[0]
	}
	for i := len(Tiers) - 1; i >= 0; i-- {
		if points >= Tiers[i].MinPoints {
			return Tiers[i]
		}
	}
	return Tiers[0]
}

type MembershipSummary struct {
	Points       int
	Tier         Tier
	NextTier     *Tier   // nil at the top tier
	PointsToNext int     // 0 at the top tier
	Progress     float64 // 0..1 within the current tier band
	Affordable   []Voucher
}

// SummarizeMembership derives the full rewards view for one points balance.
func SummarizeMembership(points int) MembershipSummary {
	if points < 0 {
		points = 0
	}
	tier := TierForPoints(points)
	sum := MembershipSummary{Points: points, Tier: tier, Progress: 1}

	for i := range Tiers {
		if Tiers[i].ID == tier.ID && i+1 < len(Tiers) {
			next := Tiers[i+1]
			sum.NextTier = &next
			sum.PointsToNext = next.MinPoints - points
			span := next.MinPoints - tier.MinPoints
			sum.Progress = float64(points-tier.MinPoints) / float64(span)
			break
		}
	}

	for _, v := range Vouchers {
		if points >= v.Cost {
			sum.Affordable = append(sum.Affordable, v)
		}
	}
	return sum
}
