package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	args := commandArgs(os.Args[1:])
	cmd := "chat"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "--help", "-h", "help":
		showUsage()
		return
	case "version", "--version":
		fmt.Println("absensi-ai", version)
		return
	case "chat":
		err = runChat()
	case "serve":
		err = runServe()
	case "mcp":
		err = runMCP()
	case "seed":
		err = runSeed()
	case "doctor":
		err = runDoctor()
	case "encrypt":
		err = runEncrypt(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'absensi-ai --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`absensi-ai - asisten AI untuk data absensi sekolah

USAGE:
    absensi-ai [COMMAND] [FLAGS]

COMMANDS:
    chat        Terminal chat (default)
    serve       HTTP and websocket gateway plus scheduled reports
    mcp         Expose the attendance operations over MCP stdio
    seed        Create a sqlite database filled with demo data
    doctor      Run health checks on your setup
    encrypt     Encrypt a secret for config.yaml (needs ABSENSI_CONFIG_KEY)
    version     Print the version

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml, or ABSENSI_CONFIG
    Environment: ABSENSI_* variables override config, .env is loaded first

EXAMPLES:
    absensi-ai                              # Chat with config.yaml
    absensi-ai --config /etc/absensi.yaml serve
    absensi-ai seed && absensi-ai chat      # Try it on demo data
    ABSENSI_CONFIG_KEY=... absensi-ai encrypt 'db-password'`)
}

// commandArgs drops the --config flag and its value from args.
func commandArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config":
			i++
		case strings.HasPrefix(args[i], "--config="):
		default:
			out = append(out, args[i])
		}
	}
	return out
}

// configPath returns the --config flag, ABSENSI_CONFIG or config.yaml.
func configPath() string {
	return configPathFrom(os.Args[1:], os.Getenv("ABSENSI_CONFIG"))
}

func configPathFrom(args []string, env string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if env != "" {
		return env
	}
	return "config.yaml"
}
