// Package progress defines the observer contract long-running operations
// expose: percentage, stage identifier and a human-readable message.
package progress

// Stage identifies where an operation currently is.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageValidating   Stage = "validating"
	StageCloning      Stage = "cloning"
	StageCheckingOut  Stage = "checking_out"
	StageParsing      Stage = "parsing"
	StageAnalyzingGit Stage = "analyzing_git"
	StageDiffing      Stage = "diffing"
	StageBuilding     Stage = "building_graphs"
	StageStoring      Stage = "storing"
	StageExporting    Stage = "exporting"
	StageCleanup      Stage = "cleanup"
	StageComplete     Stage = "complete"
)

// Report is one progress update.
type Report struct {
	Current int
	Total   int
	Stage   Stage
	Message string
}

// Percent returns the completion percentage, clamped to [0,100].
func (r Report) Percent() int {
	if r.Total <= 0 {
		return 0
	}
	p := r.Current * 100 / r.Total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Callback receives progress updates. Callbacks must be cheap and must
// not block; they run on the operation's goroutine.
type Callback func(Report)

// Notify invokes cb if non-nil.
func Notify(cb Callback, current, total int, stage Stage, message string) {
	if cb != nil {
		cb(Report{Current: current, Total: total, Stage: stage, Message: message})
	}
}
