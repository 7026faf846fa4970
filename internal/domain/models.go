package domain

import "math"

// UploadedAudio is an accepted upload. It only lives for one request.
type UploadedAudio struct {
	Data     []byte
	MIME     string
	Filename string
	Size     int64
	Format   string
}

type JobState string

const (
	JobStateCreated  JobState = "created"
	JobStatePending  JobState = "pending"
	JobStateReady    JobState = "ready"
	JobStateTimedOut JobState = "timed_out"
)

// TranscriptionJob tracks one asynchronous job on the STT provider.
type TranscriptionJob struct {
	ID       string
	FileID   string
	State    JobState
	Attempts int
}

// TodoNode is one item of the to-do tree. Done is only ever set by the
// client; upstream data never carries it.
type TodoNode struct {
	Title    string     `json:"title"`
	Due      *string    `json:"due"`
	Done     bool       `json:"done"`
	Children []TodoNode `json:"children"`
}

type AnalysisResult struct {
	Summary   string     `json:"summary"`
	TodosTree []TodoNode `json:"todos_tree"`
}

// EmptyAnalysis is what a reply that cannot be parsed degrades to.
func EmptyAnalysis() AnalysisResult {
	return AnalysisResult{Summary: "", TodosTree: []TodoNode{}}
}

// Progress combines the three pipeline signals shown to the user.
type Progress struct {
	UploadRatio    float64 `json:"uploadRatio"`
	TranscribeDone bool    `json:"transcribeDone"`
	AnalyzeDone    bool    `json:"analyzeDone"`
}

// Percent is the unweighted mean of the three signals on a 0-100 scale.
func (p Progress) Percent() int {
	a := math.Max(0, math.Min(1, p.UploadRatio))
	if math.IsNaN(a) {
		a = 0
	}
	var b, c float64
	if p.TranscribeDone {
		b = 1
	}
	if p.AnalyzeDone {
		c = 1
	}
	return int(math.Round((a + b + c) / 3 * 100))
}
