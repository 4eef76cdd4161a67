// Command speechflow runs a SpeechFlow graph described by a YAML
// configuration file (-c); the inline-expression (-e) and expression-file
// (-f) flags are accepted but fail with graph.ErrDSLUnavailable, since no
// expression parser is built in. The command follows
// the teacher's promptarena cobra entrypoint shape (tools/arena/cmd/
// promptarena/main.go): a package-level root command, an Execute() wrapper
// that exits 1 on error, and flags bound directly on the root command
// since this CLI has no subcommands (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is this module's release version; there is no external version
// source for a from-scratch module, so -V prints this constant.
const Version = "0.1.0"

var flags struct {
	expr    string
	file    string
	config  string
	status  bool
	verbose string
	addr    string
	port    int
	cache   string
	dash    string
	version bool
}

var rootCmd = &cobra.Command{
	Use:   "speechflow",
	Short: "SpeechFlow runs a dataflow graph of speech-processing stages",
	Long: `SpeechFlow composes audio capture, voice-activity detection, speech-to-text,
translation, summarization, text-to-speech, subtitle formatting, and file I/O
stages into a single streaming graph, driven by a YAML configuration (-c).
The inline-expression (-e) and expression-file (-f) flags are accepted but
report that no expression parser is available.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.expr, "expr", "e", "", "inline configuration expression")
	f.StringVarP(&flags.file, "file", "f", "", "configuration expression file")
	f.StringVarP(&flags.config, "config", "c", "", "YAML configuration, as <id>@<yaml-file>")
	f.BoolVarP(&flags.status, "status", "S", false, "print the stage-type status table and exit")
	f.StringVarP(&flags.verbose, "verbose", "v", "info", "log level: none, error, warning, info, debug")
	f.StringVarP(&flags.addr, "addr", "a", "127.0.0.1", "control-plane bind address")
	f.IntVarP(&flags.port, "port", "p", 0, "control-plane bind port (0 disables the control plane)")
	f.StringVarP(&flags.cache, "cache", "C", "", "cache directory for stages that persist working state")
	f.StringVarP(&flags.dash, "dashboard", "d", "", "dashboard block registry, as type:id:name[,...]")
	f.BoolVarP(&flags.version, "version", "V", false, "print the version and exit")
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "speechflow: loading .env: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "speechflow: %v\n", err)
		os.Exit(1)
	}
}
