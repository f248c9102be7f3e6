package version

// version is set at build time via ldflags.
var version = "dev"

func Get() string {
	return version
}
