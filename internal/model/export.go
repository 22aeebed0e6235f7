package model

// RunExport is the JSON structure for a recorded run with its scores.
type RunExport struct {
	Run     Run        `json:"run"`
	Scores  []RunScore `json:"scores"`
	Average float64    `json:"average_score"`
}

// NewRunExport builds an export and computes the average score.
func NewRunExport(run Run, scores []RunScore) RunExport {
	exp := RunExport{Run: run, Scores: scores}
	if len(scores) == 0 {
		exp.Scores = []RunScore{}
		return exp
	}
	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	exp.Average = sum / float64(len(scores))
	return exp
}
