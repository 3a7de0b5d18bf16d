package models

// Playback mode constants for channels
const (
	ModeSequential = "sequential"
	ModeShuffle    = "shuffle"
)

// Media source constants
const (
	SourceScan   = "scan"
	SourceImport = "import"
	SourceManual = "manual"
)

// ValidMode reports whether mode is a known playback mode
func ValidMode(mode string) bool {
	return mode == ModeSequential || mode == ModeShuffle
}
