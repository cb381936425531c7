package storage

import (
	"encoding/json"
	"errors"

	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/rundata"
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRunState(st rundata.State) ([]byte, error) {
	return json.Marshal(st)
}

func DecodeRunState(data []byte) (rundata.State, error) {
	var st rundata.State
	if err := json.Unmarshal(data, &st); err != nil {
		return rundata.State{}, err
	}
	if st.SchemaVersion != rundata.SchemaVersion {
		return rundata.State{}, ErrVersionMismatch
	}
	return st, nil
}

func EncodePairData(pairs pairdata.Collection) ([]byte, error) {
	return json.Marshal(pairs)
}

func DecodePairData(data []byte) (pairdata.Collection, error) {
	var pairs pairdata.Collection
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

func EncodePhaseHistory(records []rundata.PhaseRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodePhaseHistory(data []byte) ([]rundata.PhaseRecord, error) {
	var records []rundata.PhaseRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.SchemaVersion != rundata.SchemaVersion {
			return nil, ErrVersionMismatch
		}
	}
	return records, nil
}
