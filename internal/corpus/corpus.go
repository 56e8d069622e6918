// Package corpus loads the text that patterns are counted in.
//
// Text read from storage or the network is whitespace-normalized once when it
// is loaded. Text handed in directly is used untouched.
package corpus

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/firefly/ngram-counter/internal/fetcher"
	"github.com/firefly/ngram-counter/internal/normalizer"
	"github.com/firefly/ngram-counter/internal/parser"
)

// Corpus is an immutable body of text
type Corpus struct {
	text   string
	source string
}

// Text returns the corpus contents
func (c Corpus) Text() string {
	return c.text
}

// Source describes where the corpus came from
func (c Corpus) Source() string {
	return c.source
}

// Len returns the corpus length in bytes
func (c Corpus) Len() int {
	return len(c.text)
}

// Source produces a Corpus
type Source interface {
	Load(ctx context.Context) (Corpus, error)
	Describe() string
}

// SourceReadError reports a corpus source that could not be read
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("reading corpus %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// Text is a corpus supplied directly by the caller; it is never normalized
type Text string

// Load returns the text as-is
func (t Text) Load(context.Context) (Corpus, error) {
	return Corpus{text: string(t), source: t.Describe()}, nil
}

// Describe names the source in logs and errors
func (t Text) Describe() string {
	return "inline text"
}

// File is a corpus read in full from the filesystem
type File struct {
	Path string
}

// Load reads the file, rejects invalid UTF-8 and normalizes spaces
func (f File) Load(context.Context) (Corpus, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Corpus{}, &SourceReadError{Source: f.Path, Err: err}
	}
	if !utf8.Valid(data) {
		return Corpus{}, &SourceReadError{Source: f.Path, Err: fmt.Errorf("contents are not valid UTF-8")}
	}
	return Corpus{text: normalizer.Normalize(string(data)), source: f.Path}, nil
}

// Describe names the source in logs and errors
func (f File) Describe() string {
	return f.Path
}

// URL is a corpus downloaded over HTTP and reduced to text
type URL struct {
	Address string
	Fetcher *fetcher.Fetcher
	Parser  *parser.Parser
	// SkipRobots skips loading robots.txt before the download
	SkipRobots bool
}

// Load fetches the document, extracts its text and normalizes spaces
func (u URL) Load(ctx context.Context) (Corpus, error) {
	fetch := u.Fetcher
	if fetch == nil {
		fetch = fetcher.New(0)
	}
	htmlParser := u.Parser
	if htmlParser == nil {
		htmlParser = parser.New()
	}

	if !u.SkipRobots {
		if err := fetch.LoadRobotsTxt(ctx, u.Address); err != nil {
			return Corpus{}, &SourceReadError{Source: u.Address, Err: err}
		}
	}

	body, err := fetch.FetchURL(ctx, u.Address)
	if err != nil {
		return Corpus{}, &SourceReadError{Source: u.Address, Err: err}
	}
	defer body.Close()

	text, err := htmlParser.ExtractText(body)
	if err != nil {
		return Corpus{}, &SourceReadError{Source: u.Address, Err: err}
	}
	return Corpus{text: normalizer.Normalize(text), source: u.Address}, nil
}

// Describe names the source in logs and errors
func (u URL) Describe() string {
	return u.Address
}
