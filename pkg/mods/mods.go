// Package mods defines the osu! mod bitmask as it appears on the wire.
//
// The bit layout is a compatibility contract with the client and must not
// be reordered. Mods travel both at match level and per slot; the split
// between the two under freemod is handled by the match engine, with
// SpeedChanging as the pivot set.
package mods

import "strings"

// Mods is the client's mod bitmask (u32 on the wire).
type Mods uint32

const (
	NoMod       Mods = 0
	NoFail      Mods = 1 << 0
	Easy        Mods = 1 << 1
	TouchScreen Mods = 1 << 2
	Hidden      Mods = 1 << 3
	HardRock    Mods = 1 << 4
	SuddenDeath Mods = 1 << 5
	DoubleTime  Mods = 1 << 6
	Relax       Mods = 1 << 7
	HalfTime    Mods = 1 << 8
	Nightcore   Mods = 1 << 9 // always set together with DoubleTime
	Flashlight  Mods = 1 << 10
	Autoplay    Mods = 1 << 11
	SpunOut     Mods = 1 << 12
	Autopilot   Mods = 1 << 13
	Perfect     Mods = 1 << 14
	Key4        Mods = 1 << 15
	Key5        Mods = 1 << 16
	Key6        Mods = 1 << 17
	Key7        Mods = 1 << 18
	Key8        Mods = 1 << 19
	FadeIn      Mods = 1 << 20
	Random      Mods = 1 << 21
	Cinema      Mods = 1 << 22
	Target      Mods = 1 << 23
	Key9        Mods = 1 << 24
	KeyCoop     Mods = 1 << 25
	Key1        Mods = 1 << 26
	Key3        Mods = 1 << 27
	Key2        Mods = 1 << 28
	ScoreV2     Mods = 1 << 29
	Mirror      Mods = 1 << 30
)

// SpeedChanging mods alter playback rate and therefore stay centrally
// controlled at match level even while freemod is enabled.
const SpeedChanging = DoubleTime | Nightcore | HalfTime

// Has returns true if all bits of m2 are set in m.
func (m Mods) Has(m2 Mods) bool {
	return m&m2 == m2
}

// Speed returns only the speed-changing subset of m.
func (m Mods) Speed() Mods {
	return m & SpeedChanging
}

// WithoutSpeed returns m with the speed-changing subset cleared.
func (m Mods) WithoutSpeed() Mods {
	return m &^ SpeedChanging
}

var modNames = []struct {
	bit  Mods
	name string
}{
	{NoFail, "NF"}, {Easy, "EZ"}, {TouchScreen, "TD"}, {Hidden, "HD"},
	{HardRock, "HR"}, {SuddenDeath, "SD"}, {DoubleTime, "DT"},
	{Relax, "RX"}, {HalfTime, "HT"}, {Nightcore, "NC"},
	{Flashlight, "FL"}, {Autoplay, "AT"}, {SpunOut, "SO"},
	{Autopilot, "AP"}, {Perfect, "PF"}, {FadeIn, "FI"}, {Random, "RN"},
	{Cinema, "CN"}, {Target, "TP"}, {ScoreV2, "V2"}, {Mirror, "MR"},
	{Key1, "1K"}, {Key2, "2K"}, {Key3, "3K"}, {Key4, "4K"},
	{Key5, "5K"}, {Key6, "6K"}, {Key7, "7K"}, {Key8, "8K"},
	{Key9, "9K"}, {KeyCoop, "CO"},
}

// String returns the short-name representation, e.g. "HDDT".
// Nightcore implies DoubleTime on the wire; the DT token is dropped when
// NC is present so "NC" never renders as "DTNC".
func (m Mods) String() string {
	if m == NoMod {
		return "NM"
	}
	var sb strings.Builder
	for _, mn := range modNames {
		if mn.bit == DoubleTime && m.Has(Nightcore) {
			continue
		}
		if m&mn.bit != 0 {
			sb.WriteString(mn.name)
		}
	}
	return sb.String()
}
