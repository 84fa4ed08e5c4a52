// smcanalyze runs the detection suite once over synthetic candles and
// prints the results as JSON. Useful for eyeballing detector output and
// for piping into jq without standing up the full service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"smc-enginev1/internal/detect"
	"smc-enginev1/internal/marketdata"
	"smc-enginev1/internal/model"
)

func main() {
	log.SetFlags(0)

	pair := flag.String("pair", "EUR/USD", "currency pair")
	tf := flag.String("tf", "15m", "timeframe (1m 5m 15m 30m 1h 4h 1d)")
	count := flag.Int("count", 300, "number of candles to analyze")
	opsFlag := flag.String("ops", "", "comma-separated op names (empty = full suite)")
	listOps := flag.Bool("list", false, "list available ops and exit")
	pretty := flag.Bool("pretty", false, "indent the JSON output")
	flag.Parse()

	if *listOps {
		for _, name := range detect.List() {
			fmt.Println(name)
		}
		return
	}

	var ops []string
	if *opsFlag != "" {
		for _, name := range strings.Split(*opsFlag, ",") {
			if name = strings.TrimSpace(name); name != "" {
				ops = append(ops, name)
			}
		}
	}

	series, err := marketdata.NewSynthetic().Candles(context.Background(), *pair, *tf, *count)
	if err != nil {
		fail(err)
	}

	started := time.Now()
	results, err := detect.RunMany(ops, series, detect.Defaults())
	if err != nil {
		fail(err)
	}

	findings := 0
	for _, r := range results {
		findings += detect.FindingCount(r)
	}

	out := struct {
		Pair        string         `json:"pair"`
		Timeframe   string         `json:"timeframe"`
		Candles     int            `json:"candles"`
		Findings    int            `json:"findings"`
		GeneratedAt time.Time      `json:"generated_at"`
		ElapsedMS   int64          `json:"elapsed_ms"`
		Results     map[string]any `json:"results"`
	}{
		Pair:        *pair,
		Timeframe:   *tf,
		Candles:     series.Len(),
		Findings:    findings,
		GeneratedAt: time.Now().UTC(),
		ElapsedMS:   time.Since(started).Milliseconds(),
		Results:     results,
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		fail(err)
	}
}

func fail(err error) {
	if model.IsInputError(err) {
		log.Printf("invalid input: %v", err)
	} else {
		log.Printf("error: %v", err)
	}
	os.Exit(1)
}
