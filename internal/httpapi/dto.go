package httpapi

import "FearGreedTracker/internal/model"

type recordJSON struct {
	Date   string `json:"date"`
	Value  int    `json:"value"`
	Rating string `json:"rating"`
}

type summaryJSON struct {
	Count    int         `json:"count"`
	Latest   *recordJSON `json:"latest,omitempty"`
	Min      *recordJSON `json:"min,omitempty"`
	Max      *recordJSON `json:"max,omitempty"`
	Mean     float64     `json:"mean"`
	Avg7d    float64     `json:"avg_7d"`
	Avg30d   float64     `json:"avg_30d"`
	Median   float64     `json:"median"`
	P10      float64     `json:"p10"`
	P90      float64     `json:"p90"`
	Earliest string      `json:"earliest,omitempty"`
}

type bandJSON struct {
	Name    string  `json:"name"`
	Low     int     `json:"low"`
	High    int     `json:"high"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type distributionJSON struct {
	Total int        `json:"total"`
	Bands []bandJSON `json:"bands"`
}

func record(date string, value int) *recordJSON {
	return &recordJSON{Date: date, Value: value, Rating: model.CategoryOf(value).String()}
}

func toSummaryJSON(s model.Summary) summaryJSON {
	out := summaryJSON{Count: s.Count}
	if s.Count == 0 {
		return out
	}
	out.Latest = record(s.LatestDate, s.LatestValue)
	out.Min = record(s.MinDate, s.Min)
	out.Max = record(s.MaxDate, s.Max)
	out.Mean, out.Avg7d, out.Avg30d = s.Mean, s.Avg7d, s.Avg30d
	out.Median, out.P10, out.P90 = s.Median, s.P10, s.P90
	out.Earliest = s.Earliest
	return out
}

func toDistributionJSON(d model.Distribution) distributionJSON {
	out := distributionJSON{Total: d.Total, Bands: make([]bandJSON, len(model.Bands))}
	for i, b := range model.Bands {
		out.Bands[i] = bandJSON{
			Name:    b.Name,
			Low:     b.Low,
			High:    b.High,
			Count:   d.Count(b.Category),
			Percent: d.Percent(b.Category),
		}
	}
	return out
}
