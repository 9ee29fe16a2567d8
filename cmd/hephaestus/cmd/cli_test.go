package cmd

import "testing"

func TestFlagsRegistered(t *testing.T) {
	for _, name := range []string{
		"target",
		"binutils-version",
		"gcc-version",
		"gdb-version",
		"rebuild-image",
		"build-dir",
	} {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}

	if got := rootCmd.Flags().Lookup("target").DefValue; got != "i686-elf" {
		t.Errorf("default target = %q, want i686-elf", got)
	}
}

func TestUnknownFlagRejected(t *testing.T) {
	if err := rootCmd.ParseFlags([]string{"--no-such-flag"}); err == nil {
		t.Fatal("unknown flag accepted")
	}
}
