package recorder

import (
	"math"
)

const (
	ANALYTICS_WINDOW      = 10
	MIN_VOLATILITY_ROUNDS = 5
	STREAK_THRESHOLD      = 2.0
	HIGH_RISK_THRESHOLD   = 5.0
)

type Volatility string

const (
	VolatilityUnknown Volatility = "UNKNOWN"
	VolatilityLow     Volatility = "LOW"
	VolatilityMedium  Volatility = "MEDIUM"
	VolatilityHigh    Volatility = "HIGH"
	VolatilityExtreme Volatility = "EXTREME"
)

// RiskDistribution is the share of rounds, in whole percent, crashing below
// 2x, between 2x and 5x, and at 5x or above.
type RiskDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

type Analytics struct {
	Rounds        int              `json:"rounds"`
	RecentAverage float64          `json:"recent_average"`
	StdDev        float64          `json:"std_dev"`
	Volatility    Volatility       `json:"volatility"`
	HotStreak     int              `json:"hot_streak"`
	ColdStreak    int              `json:"cold_streak"`
	Profitability int              `json:"profitability"`
	Risk          RiskDistribution `json:"risk"`
}

// Analyze derives display analytics from a newest-first round history.
func Analyze(history []RoundHistoryEntry) Analytics {
	a := Analytics{Rounds: len(history), Volatility: VolatilityUnknown}
	if len(history) == 0 {
		return a
	}

	recent := history[:min(len(history), ANALYTICS_WINDOW)]
	sum := 0.0
	for _, h := range recent {
		sum += h.CrashPoint
	}
	a.RecentAverage = sum / float64(len(recent))

	variance := 0.0
	for _, h := range recent {
		variance += math.Pow(h.CrashPoint-a.RecentAverage, 2)
	}
	a.StdDev = math.Sqrt(variance / float64(len(recent)))
	if len(history) >= MIN_VOLATILITY_ROUNDS {
		a.Volatility = volatilityOf(a.StdDev)
	}

	for _, h := range history {
		if h.CrashPoint < STREAK_THRESHOLD {
			break
		}
		a.HotStreak++
	}
	for _, h := range history {
		if h.CrashPoint >= STREAK_THRESHOLD {
			break
		}
		a.ColdStreak++
	}

	var low, medium, high int
	for _, h := range history {
		switch {
		case h.CrashPoint < STREAK_THRESHOLD:
			low++
		case h.CrashPoint < HIGH_RISK_THRESHOLD:
			medium++
		default:
			high++
		}
	}
	total := float64(len(history))
	a.Profitability = percent(medium+high, total)
	a.Risk = RiskDistribution{
		Low:    percent(low, total),
		Medium: percent(medium, total),
		High:   percent(high, total),
	}
	return a
}

func volatilityOf(stdDev float64) Volatility {
	switch {
	case stdDev < 1:
		return VolatilityLow
	case stdDev < 3:
		return VolatilityMedium
	case stdDev < 6:
		return VolatilityHigh
	default:
		return VolatilityExtreme
	}
}

func percent(n int, total float64) int {
	return int(math.Round(float64(n) / total * 100))
}
