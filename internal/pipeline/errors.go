package pipeline

import "github.com/cockroachdb/errors"

// Stage markers. A fatal run error is marked with exactly one of them.
var (
	ErrLoad      = errors.New("load")
	ErrAggregate = errors.New("aggregate")
	ErrRank      = errors.New("rank")
	ErrAssemble  = errors.New("assemble")
	ErrWrite     = errors.New("write")
)

var stages = []error{ErrLoad, ErrAggregate, ErrRank, ErrAssemble, ErrWrite}

// Stage returns the name of the stage that produced err, or "" when err
// carries no stage marker.
func Stage(err error) string {
	for _, s := range stages {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return ""
}

// Mark wraps err with the stage prefix and marks it with stage.
func Mark(stage error, err error, msg string) error {
	return errors.Mark(errors.Wrapf(err, "%s: %s", stage, msg), stage)
}

func failf(stage error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf("%s: "+format, append([]interface{}{stage}, args...)...), stage)
}

// guard turns a panic inside fn into a stage error so an invariant
// violation fails the run instead of emitting a malformed artifact.
func guard(stage error, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failf(stage, "invariant violated: %v", r)
		}
	}()
	fn()
	return nil
}
