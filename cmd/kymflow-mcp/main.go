package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/kymflow-mcp/internal/config"
	"github.com/ironsheep/kymflow-mcp/internal/monitoring"
	"github.com/ironsheep/kymflow-mcp/internal/server"
	"github.com/ironsheep/kymflow-mcp/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("kymflow-mcp - MCP server for kymograph blood flow analysis")
	fmt.Println()
	fmt.Println("Usage: kymflow-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <file>  JSON config with analysis defaults")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  KYMFLOW_LOG_LEVEL=debug      Enable debug logging")
	fmt.Println("  KYMFLOW_CONFIG=<file>        Config file if --config is not given")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	var configPath string
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--version" || arg == "-v" || arg == "version":
			fmt.Printf("kymflow-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case arg == "--help" || arg == "-h" || arg == "help":
			usage()
			return
		case arg == "--config" && i+1 < len(args):
			i++
			configPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		default:
			fmt.Fprintf(os.Stderr, "unknown argument: %s\n\n", arg)
			usage()
			os.Exit(2)
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv("KYMFLOW_LOG_LEVEL") == "debug" {
		monitoring.EnableDebug(true)
		log.Printf("Kymflow MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	var st *store.Store
	if dbPath := cfg.GetDatabasePath(); dbPath != "" {
		st, err = store.Open(dbPath)
		if err != nil {
			log.Fatalf("Database error: %v", err)
		}
		defer st.Close()
		monitoring.Debugf("using database %s", dbPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.Version = Version
	srv := server.New(cfg, st)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Server error: %v", err)
		stop()
		if st != nil {
			st.Close()
		}
		os.Exit(1)
	}
}
