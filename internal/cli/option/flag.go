package option

import (
	"github.com/spf13/pflag"
)

const (
	// FactoryDirFlag is the flag name for the factory directory flag.
	FactoryDirFlag = "factory-dir"

	// SourceRootFlag is the flag name for the source root flag.
	SourceRootFlag = "source-root"

	// SourceRevisionFlag is the flag name for the source revision flag.
	SourceRevisionFlag = "source-revision"

	// LogLevelFlag is the flag name for the log level flag.
	LogLevelFlag = "log-level"

	// LogFormatFlag is the flag name for the log format flag.
	LogFormatFlag = "log-format"

	// OutputFlag is the flag name for the output flag.
	OutputFlag = "output"
	// OutputShortFlag is the short flag name for the output flag.
	OutputShortFlag = "o"
)

// FactoryDir adds the FactoryDirFlag to the provided flag set.
func FactoryDir(fs *pflag.FlagSet, dir *string, defaultDir string) {
	fs.StringVar(dir, FactoryDirFlag, defaultDir,
		"The image factory directory holding images.yaml and the state directories.")
}

// SourceRoot adds the SourceRootFlag to the provided flag set.
func SourceRoot(fs *pflag.FlagSet, root *string, defaultRoot string) {
	fs.StringVar(root, SourceRootFlag, defaultRoot,
		"The directory Dockerfile paths are relative to. Defaults to the parent of the factory directory.")
}

// SourceRevision adds the SourceRevisionFlag to the provided flag set.
func SourceRevision(fs *pflag.FlagSet, revision *string, defaultRevision string) {
	fs.StringVar(revision, SourceRevisionFlag, defaultRevision,
		"If set, read Dockerfiles from this git revision instead of the working tree.")
}

// LogLevel adds the LogLevelFlag to the provided flag set.
func LogLevel(fs *pflag.FlagSet, level *string, defaultLevel string) {
	fs.StringVar(level, LogLevelFlag, defaultLevel,
		"The log level. One of: error, warn, info, debug, trace.")
}

// LogFormat adds the LogFormatFlag to the provided flag set.
func LogFormat(fs *pflag.FlagSet, format *string, defaultFormat string) {
	fs.StringVar(format, LogFormatFlag, defaultFormat, "The log format. One of: console, json.")
}

// Output adds the OutputFlag and OutputShortFlag to the provided flag set.
func Output(fs *pflag.FlagSet, output *string, usage string) {
	fs.StringVarP(output, OutputFlag, OutputShortFlag, "", usage)
}
