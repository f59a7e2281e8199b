// Command recommend prints recommendations for one request as JSON.
//
//	recommend <type> <data_json> [number]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pdg-16-2025/homeal/backend/config"
	"github.com/pdg-16-2025/homeal/backend/internal/database"
	"github.com/pdg-16-2025/homeal/backend/internal/logging"
	"github.com/pdg-16-2025/homeal/backend/internal/service"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "Abort the request after this long")
	verbose := flag.Bool("v", false, "Log to stderr at debug level")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: recommend [flags] <type> <data_json> [number]")
		fmt.Fprintln(flag.CommandLine.Output(), "Types: ingredients, nutriments, preferences, random")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	strategy, data := flag.Arg(0), flag.Arg(1)
	number := 0
	if flag.NArg() > 2 {
		n, err := strconv.Atoi(flag.Arg(2))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid number %q: %v\n", flag.Arg(2), err)
			os.Exit(1)
		}
		number = n
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = logging.New("debug", "console"); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
			os.Exit(1)
		}
	}

	db, err := database.Open(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open recipe store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = database.Close(db) }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc := service.NewRecommendationService(db, logger, service.Options{
		ReviewLogPath: cfg.ReviewLogPath,
		DefaultNumber: cfg.DefaultNumber,
		MaxNumber:     cfg.MaxNumber,
	})
	env := svc.Recommend(ctx, strategy, []byte(data), number)

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
