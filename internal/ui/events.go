package ui

// Stage identifies where a module is in the instrumentation pipeline.
type Stage uint8

const (
	StageDecode Stage = iota + 1
	StageInstrument
	StageEncode
	StageSidecar
)

// Status is the state of a module within a stage.
type Status uint8

const (
	StatusQueued Status = iota + 1
	StatusWorking
	StatusDone
	StatusError
)

// Event is one progress update from the instrumentation pipeline.
type Event struct {
	File   string
	Stage  Stage
	Status Status
}
