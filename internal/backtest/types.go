package backtest

import (
	"encoding/json"
	"fmt"
	"time"
)

// Holding is one portfolio line-item: a ticker with its target weight
// in percent. Weight may be zero; the simulator renormalizes whatever
// positive weights it is given.
type Holding struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name,omitempty"`
	Weight    float64 `json:"weight"`
	AssetType string  `json:"type,omitempty"`
	Currency  string  `json:"currency"`
}

// Frequency enumerates the supported rebalancing cadences.
type Frequency int

const (
	FreqNone Frequency = iota
	FreqYearly
	FreqSemiAnnual
	FreqQuarterly
	FreqMonthly
)

var frequencyNames = map[Frequency]string{
	FreqNone:       "None",
	FreqYearly:     "Yearly",
	FreqSemiAnnual: "Semi-Annually",
	FreqQuarterly:  "Quarterly",
	FreqMonthly:    "Monthly",
}

func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return "None"
}

// ParseFrequency converts the stored string form back to a Frequency
func ParseFrequency(s string) (Frequency, error) {
	for f, name := range frequencyNames {
		if s == name {
			return f, nil
		}
	}
	return FreqNone, fmt.Errorf("unknown rebalance frequency %q", s)
}

// MarshalJSON encodes the frequency by name
func (f Frequency) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON decodes the frequency from its name
func (f *Frequency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFrequency(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Months returns the set of calendar months on which this frequency
// triggers a rebalance, derived from the anchor month.
func (f Frequency) Months(anchor time.Month) map[time.Month]bool {
	months := make(map[time.Month]bool)
	switch f {
	case FreqYearly:
		months[anchor] = true
	case FreqSemiAnnual:
		for i := 0; i < 12; i += 6 {
			months[shiftMonth(anchor, i)] = true
		}
	case FreqQuarterly:
		for i := 0; i < 12; i += 3 {
			months[shiftMonth(anchor, i)] = true
		}
	case FreqMonthly:
		for m := time.January; m <= time.December; m++ {
			months[m] = true
		}
	}
	return months
}

// shiftMonth adds n months to m with wrap-around on 1..12
func shiftMonth(m time.Month, n int) time.Month {
	return time.Month((int(m)+n-1)%12 + 1)
}

// RebalancePolicy defines which calendar months trigger a
// return-to-target-weight event.
type RebalancePolicy struct {
	Frequency   Frequency  `json:"frequency"`
	AnchorMonth time.Month `json:"anchor_month"`
}

// Result is the daily outcome of a backtest run. All slices share the
// same date index: the return-derived dates of the input price table
// (one row shorter than the prices). Index series are rebased to 100
// at the start of the window.
type Result struct {
	Dates            []time.Time          `json:"dates"`
	DailyReturns     []float64            `json:"daily_returns"`
	Portfolio        []float64            `json:"portfolio"`
	Benchmark        []float64            `json:"benchmark"`
	BenchmarkReturns []float64            `json:"benchmark_returns"`
	AssetOrder       []string             `json:"asset_order"`
	Assets           map[string][]float64 `json:"assets"`
}

// Len returns the number of simulated days
func (r *Result) Len() int {
	return len(r.Dates)
}

// StartDate returns the first simulated date
func (r *Result) StartDate() time.Time {
	return r.Dates[0]
}

// EndDate returns the last simulated date
func (r *Result) EndDate() time.Time {
	return r.Dates[len(r.Dates)-1]
}

// FinalPortfolioValue returns the last portfolio index value
func (r *Result) FinalPortfolioValue() float64 {
	return r.Portfolio[len(r.Portfolio)-1]
}

// FinalBenchmarkValue returns the last benchmark index value
func (r *Result) FinalBenchmarkValue() float64 {
	return r.Benchmark[len(r.Benchmark)-1]
}
