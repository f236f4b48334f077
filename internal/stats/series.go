package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"amigame/internal/model"
)

type UtilityPoint struct {
	Generation int     `json:"generation"`
	Attacker   float64 `json:"attacker"`
	Defender   float64 `json:"defender"`
}

type profileFunc func(model.GenerationRecord) []float64

func attackProfile(r model.GenerationRecord) []float64  { return r.AttackProfile }
func defenceProfile(r model.GenerationRecord) []float64 { return r.DefenceProfile }

func WriteUtilitySeries(path string, history []model.GenerationRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "attacker_utility", "defender_utility"}); err != nil {
		return err
	}
	for _, record := range history {
		if err := writer.Write([]string{
			strconv.Itoa(record.Generation),
			formatFloat(record.AttackerUtility),
			formatFloat(record.DefenderUtility),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadUtilitySeries(baseDir, runID string) ([]UtilityPoint, bool, error) {
	path := filepath.Join(baseDir, runID, utilityFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []UtilityPoint{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 3 {
		return nil, false, fmt.Errorf("utility series header must have at least 3 columns")
	}

	series := make([]UtilityPoint, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 3 {
			return nil, false, fmt.Errorf("utility series row must have at least 3 columns")
		}
		generation, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		attacker, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		defender, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, UtilityPoint{Generation: generation, Attacker: attacker, Defender: defender})
	}
	return series, true, nil
}

// WriteProfileSeries writes one row per generation and one column per node.
func WriteProfileSeries(path string, labels []string, history []model.GenerationRecord, profile profileFunc) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(append([]string{"generation"}, labels...)); err != nil {
		return err
	}
	for _, record := range history {
		values := profile(record)
		if len(values) != len(labels) {
			return fmt.Errorf("generation %d profile has %d nodes, want %d", record.Generation, len(values), len(labels))
		}
		row := make([]string, 0, len(values)+1)
		row = append(row, strconv.Itoa(record.Generation))
		for _, value := range values {
			row = append(row, formatFloat(value))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteGroupSeries writes group totals in long form:
// generation,group,attack,defence.
func WriteGroupSeries(path string, groups []GroupProfile) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "group", "attack", "defence"}); err != nil {
		return err
	}
	for _, group := range groups {
		for i, generation := range group.Generations {
			if err := writer.Write([]string{
				strconv.Itoa(generation),
				group.Group,
				formatFloat(group.Attack[i]),
				formatFloat(group.Defence[i]),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
