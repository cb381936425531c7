package storage

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/rundata"
)

func TestRunStateCodecRoundTrip(t *testing.T) {
	st := testState(t, "run-1")
	data, err := EncodeRunState(st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRunState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, st) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, st)
	}
}

func TestDecodeRunStateRejectsVersionMismatch(t *testing.T) {
	st := testState(t, "run-1")
	st.SchemaVersion = 99
	data, err := EncodeRunState(st)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeRunState(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestDecodeRunStateRejectsGarbage(t *testing.T) {
	if _, err := DecodeRunState([]byte("not json")); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestPairDataCodecRoundTrip(t *testing.T) {
	pairs := pairdata.Collection{
		"196_228": {
			Name:         "196_228",
			Bins:         []float64{0.1, 0.2},
			Distribution: []float64{1, 3},
			Sites:        []int{196, 228},
		},
	}
	data, err := EncodePairData(pairs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePairData(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, pairs) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestPhaseHistoryCodec(t *testing.T) {
	st := testState(t, "run-1")
	records := []rundata.PhaseRecord{
		rundata.NewPhaseRecord(st, 0, 50, true),
		rundata.NewPhaseRecord(st, 50, 80, false),
	}
	data, err := EncodePhaseHistory(records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePhaseHistory(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	records[1].SchemaVersion = 0
	data, err = EncodePhaseHistory(records)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodePhaseHistory(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}
