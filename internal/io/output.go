package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/firefly/ngram-counter/internal/aggregator"
)

const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Result represents the final counting result for output. Exactly one of
// Counts and Combinations is set; a set map is written even when empty.
type Result struct {
	Source                string                      `json:"source" msgpack:"source"`
	Counts                *aggregator.ResultMap       `json:"counts,omitempty" msgpack:"counts,omitempty"`
	Combinations          *aggregator.NestedResultMap `json:"combinations,omitempty" msgpack:"combinations,omitempty"`
	Top                   []aggregator.PatternCount  `json:"top,omitempty" msgpack:"top,omitempty"`
	Failures              []string                   `json:"failures,omitempty" msgpack:"failures,omitempty"`
	TotalMatches          int                        `json:"total_matches" msgpack:"total_matches"`
	ProcessingTimeSeconds float64                    `json:"processing_time_seconds" msgpack:"processing_time_seconds"`
}

// NewResult builds a Result for flat counts, ranking the top N when topN > 0
func NewResult(source string, counts aggregator.ResultMap, topN int, elapsed float64) Result {
	if counts == nil {
		counts = aggregator.ResultMap{}
	}
	result := Result{
		Source:                source,
		Counts:                &counts,
		TotalMatches:          aggregator.Total(counts),
		ProcessingTimeSeconds: elapsed,
	}
	if topN > 0 {
		result.Top = aggregator.Top(counts, topN)
	}
	return result
}

// NewNestedResult builds a Result for per-word counts
func NewNestedResult(source string, nested aggregator.NestedResultMap, elapsed float64) Result {
	if nested == nil {
		nested = aggregator.NestedResultMap{}
	}
	total := 0
	for _, counts := range nested {
		total += aggregator.Total(counts)
	}
	return Result{
		Source:                source,
		Combinations:          &nested,
		TotalMatches:          total,
		ProcessingTimeSeconds: elapsed,
	}
}

// Encode serializes result in the given format
func Encode(result Result, format string) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling result to JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatMsgpack:
		data, err := msgpack.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshaling result to msgpack: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// OutputResult writes result to w
func OutputResult(w io.Writer, result Result, format string) error {
	data, err := Encode(result, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// OutputResultToFile writes result to a file
func OutputResultToFile(result Result, format, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer file.Close()

	if err := OutputResult(file, result, format); err != nil {
		return err
	}
	return file.Close()
}
