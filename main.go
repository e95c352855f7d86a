// Entry point for the OntoGraph extraction and fusion server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/config"
	ontology "github.com/Mimir-AIP/OntoGraph-Go/pipelines/Ontology"
)

const ontographVersion = "v0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		runServerFromConfig()
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printHelp()
		return
	case "--version", "-v":
		fmt.Println("OntoGraph version:", ontographVersion)
		return
	case "--validate-ontology":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: --validate-ontology requires a YAML file path")
			os.Exit(1)
		}
		validateOntologyFile(args[1])
		return
	case "--server":
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if len(args) > 1 {
			cfg.Port = args[1]
		}
		runServer(cfg)
		return
	default:
		fmt.Fprintln(os.Stderr, "Unknown argument. Use --help for usage.")
		os.Exit(1)
	}
}

func runServerFromConfig() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	runServer(cfg)
}

// validateOntologyFile parses an ontology YAML file and reports the result.
func validateOntologyFile(path string) {
	ont, err := ontology.LoadOntologyFromFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid ontology: %v\n", err)
		os.Exit(1)
	}

	summary := map[string]any{
		"domain_name":        ont.DomainName,
		"entity_types":       len(ont.EntityTypes),
		"relationship_types": len(ont.RelationshipTypes),
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}

func runServer(cfg *config.Config) {
	server, err := NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing server: %v\n", err)
		os.Exit(1)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:8080", "*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(server.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting OntoGraph server on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func printHelp() {
	fmt.Println("Usage:")
	fmt.Println("  --server [port]                  Start HTTP server (default port: 8080)")
	fmt.Println("  --validate-ontology <file>       Validate an ontology YAML file")
	fmt.Println("  (no arguments)                   Start HTTP server from environment config")
	fmt.Println("  -h, --help, help                 Show this help message")
	fmt.Println("  -v, --version                    Show OntoGraph version")
}
