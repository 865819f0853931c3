package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/andesmap/predial/internal/logger"
	"github.com/andesmap/predial/internal/server"
)

// Options defines all CLI flags and env vars for the predial server.
// Flags: --host, --port, --analysis-url, --catalog, --web-dir, --timeout
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_ANALYSIS_URL, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8094"`
	AnalysisURL string `doc:"Base URL of the spatial analysis service" default:"http://localhost:8000"`
	Catalog     string `doc:"Path to the ecosystem catalog YAML" default:""`
	WebDir      string `doc:"Path to web/ directory" default:"web"`
	Timeout     int    `doc:"Analysis request timeout in seconds" default:"60"`
}

func newServer(opts *Options) *server.Server {
	return server.New(server.Config{
		Host:        opts.Host,
		Port:        fmt.Sprintf("%d", opts.Port),
		AnalysisURL: opts.AnalysisURL,
		CatalogPath: opts.Catalog,
		WebDir:      opts.WebDir,
		Timeout:     time.Duration(opts.Timeout) * time.Second,
	})
}

func main() {
	// Local .env files override nothing already set in the environment.
	_ = godotenv.Load()
	log := logger.Setup()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			log.Info("predial server starting",
				"addr", addr,
				"analysis_url", opts.AnalysisURL)

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Error("server error", "err", err)
				os.Exit(1)
			}
		})
		hooks.OnStop(func() {
			srv.Close()
		})
	})

	cli.Root().Use = "predial"
	cli.Root().Short = "Parcel restriction-analysis session server"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Run()
}
