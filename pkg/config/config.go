package config

import (
	"runtime"

	"github.com/spf13/viper"
)

// Settings are the environment-level knobs for one run, resolved once at
// startup. Everything chosen per invocation (target triple, component
// versions) comes in through CLI flags instead.
type Settings struct {
	// Debug enables verbose execution tracing of every sandboxed command.
	Debug bool
	// Jobs is the parallelism factor handed to each component's build step.
	Jobs int
	// BuildDir is the host workspace root.
	BuildDir string
}

// Load reads settings from HEPHAESTUS_* environment variables with
// built-in defaults. The returned value is never mutated afterwards.
func Load() Settings {
	v := viper.New()
	v.SetEnvPrefix("HEPHAESTUS")
	v.AutomaticEnv()
	v.SetDefault("debug", false)
	v.SetDefault("jobs", defaultJobs())
	v.SetDefault("build_dir", "build")

	// Non-numeric or non-positive overrides would reach make as an
	// invalid -j argument; fall back to the default instead.
	jobs := v.GetInt("jobs")
	if jobs < 1 {
		jobs = defaultJobs()
	}

	return Settings{
		Debug:    v.GetBool("debug"),
		Jobs:     jobs,
		BuildDir: v.GetString("build_dir"),
	}
}

// defaultJobs uses every core up to a bound of 8.
func defaultJobs() int {
	if n := runtime.NumCPU(); n < 8 {
		return n
	}
	return 8
}
