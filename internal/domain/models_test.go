package domain

import (
	"encoding/json"
	"math"
	"testing"
)

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name     string
		progress Progress
		want     int
	}{
		{"idle", Progress{}, 0},
		{"half uploaded", Progress{UploadRatio: 0.5}, 17},
		{"uploaded", Progress{UploadRatio: 1}, 33},
		{"transcribed", Progress{UploadRatio: 1, TranscribeDone: true}, 67},
		{"done", Progress{UploadRatio: 1, TranscribeDone: true, AnalyzeDone: true}, 100},
		{"ratio clamped high", Progress{UploadRatio: 3}, 33},
		{"ratio clamped low", Progress{UploadRatio: -1}, 0},
		{"nan ratio", Progress{UploadRatio: math.NaN()}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.progress.Percent(); got != tt.want {
				t.Errorf("Percent() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEmptyAnalysisEncodesArray(t *testing.T) {
	data, err := json.Marshal(EmptyAnalysis())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if string(data) != `{"summary":"","todos_tree":[]}` {
		t.Errorf("EmptyAnalysis() encoded as %s", data)
	}
}
