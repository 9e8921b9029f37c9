package mods

import "testing"

func TestSpeedSplit(t *testing.T) {
	tests := []struct {
		name      string
		in        Mods
		speed     Mods
		remainder Mods
	}{
		{"none", NoMod, NoMod, NoMod},
		{"hddt", Hidden | DoubleTime, DoubleTime, Hidden},
		{"nc", Nightcore | DoubleTime, Nightcore | DoubleTime, NoMod},
		{"ht_ez", HalfTime | Easy, HalfTime, Easy},
		{"no_speed", Hidden | HardRock | Flashlight, NoMod, Hidden | HardRock | Flashlight},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Speed(); got != tc.speed {
				t.Errorf("Speed() = %v, want %v", got, tc.speed)
			}
			if got := tc.in.WithoutSpeed(); got != tc.remainder {
				t.Errorf("WithoutSpeed() = %v, want %v", got, tc.remainder)
			}
			if tc.in.Speed()|tc.in.WithoutSpeed() != tc.in {
				t.Error("split does not reassemble")
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   Mods
		want string
	}{
		{NoMod, "NM"},
		{Hidden | DoubleTime, "HDDT"},
		{Hidden | Nightcore | DoubleTime, "HDNC"},
		{HardRock | Flashlight, "HRFL"},
	}

	for _, tc := range tests {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}
