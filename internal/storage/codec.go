package storage

import (
	"encoding/json"
	"errors"

	"amigame/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps records written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeSnapshot(s model.PopulationSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (model.PopulationSnapshot, error) {
	var snapshot model.PopulationSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.PopulationSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.PopulationSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeHistory(history []model.GenerationRecord) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeHistory(data []byte) ([]model.GenerationRecord, error) {
	var history []model.GenerationRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
