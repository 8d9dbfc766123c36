package models

import "fmt"

// Outcome is the result of measuring one photon at one detector.
type Outcome int8

const (
	NoDetection Outcome = -1 // nothing registered
	Zero        Outcome = 0  // extraordinary channel
	Plus        Outcome = 1  // ordinary channel
)

// Detected reports whether the detector registered anything.
func (o Outcome) Detected() bool {
	return o >= Zero
}

func (o Outcome) String() string {
	switch o {
	case Plus:
		return "+"
	case Zero:
		return "0"
	case NoDetection:
		return "-"
	default:
		return fmt.Sprintf("Outcome(%d)", int8(o))
	}
}

// SettingPair is the detector setting (0 or 1) chosen on each side for
// one trial. Entries read from a file use -1 to mark an invalid line.
type SettingPair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// InvalidPair marks a supplied entry that failed validation.
var InvalidPair = SettingPair{A: -1, B: -1}

// Valid reports whether both settings are 0 or 1.
func (p SettingPair) Valid() bool {
	return (p.A == 0 || p.A == 1) && (p.B == 0 || p.B == 1)
}
