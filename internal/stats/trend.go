package stats

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"amigame/internal/model"
)

const (
	SeriesAttackerUtility = "attacker_utility"
	SeriesDefenderUtility = "defender_utility"
)

type TrendPoint struct {
	Generation int     `json:"generation"`
	Value      float64 `json:"value"`
}

type TrendSeries struct {
	Name   string       `json:"name"`
	Points []TrendPoint `json:"points"`
}

// Values returns the series values without their generation index.
func (s TrendSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

type TrendSummary struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Final float64 `json:"final"`
}

// BuildTrendSeries turns a run history into plot-ready series: both average
// utilities followed by attack:<label> and defence:<label> per node.
func BuildTrendSeries(history []model.GenerationRecord, labels []string) []TrendSeries {
	series := make([]TrendSeries, 0, 2+2*len(labels))
	series = append(series,
		buildSeries(SeriesAttackerUtility, history, func(r model.GenerationRecord) (float64, bool) {
			return r.AttackerUtility, true
		}),
		buildSeries(SeriesDefenderUtility, history, func(r model.GenerationRecord) (float64, bool) {
			return r.DefenderUtility, true
		}),
	)
	for i, label := range labels {
		node := i
		series = append(series, buildSeries("attack:"+label, history, func(r model.GenerationRecord) (float64, bool) {
			if node >= len(r.AttackProfile) {
				return 0, false
			}
			return r.AttackProfile[node], true
		}))
	}
	for i, label := range labels {
		node := i
		series = append(series, buildSeries("defence:"+label, history, func(r model.GenerationRecord) (float64, bool) {
			if node >= len(r.DefenceProfile) {
				return 0, false
			}
			return r.DefenceProfile[node], true
		}))
	}
	return series
}

func buildSeries(name string, history []model.GenerationRecord, value func(model.GenerationRecord) (float64, bool)) TrendSeries {
	points := make([]TrendPoint, 0, len(history))
	for _, record := range history {
		v, ok := value(record)
		if !ok {
			continue
		}
		points = append(points, TrendPoint{Generation: record.Generation, Value: v})
	}
	return TrendSeries{Name: name, Points: points}
}

// SummarizeTrend describes the last window points of a series; window <= 0
// uses every point.
func SummarizeTrend(series TrendSeries, window int) TrendSummary {
	values := series.Values()
	if window > 0 && window < len(values) {
		values = values[len(values)-window:]
	}
	summary := TrendSummary{Name: series.Name}
	if len(values) == 0 {
		return summary
	}
	summary.Mean, summary.Std = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		summary.Std = 0
	}
	summary.Min = floats.Min(values)
	summary.Max = floats.Max(values)
	summary.Final = values[len(values)-1]
	return summary
}

// WriteTrendGraph writes every series as a gnuplot data block.
func WriteTrendGraph(path, title string, series []TrendSeries) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for i, s := range series {
		if i > 0 {
			if _, err := io.WriteString(file, "\n\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(file, "#%s Vs Generation, Run:%s\n", sanitizeGraphToken(s.Name), title); err != nil {
			return err
		}
		if err := writeSeries(file, s.Points); err != nil {
			return err
		}
	}
	return nil
}

func writeSeries(w io.Writer, points []TrendPoint) error {
	for _, p := range points {
		if _, err := fmt.Fprintf(w, "%d %g\n", p.Generation, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeGraphToken(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	token := strings.Trim(b.String(), "_")
	if token == "" {
		return "unknown"
	}
	return token
}
