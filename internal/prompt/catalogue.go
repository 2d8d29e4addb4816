// Package prompt composes the three stage prompts of the defense pipeline
// from the evidence ledger, the lease data, and a structured legal catalogue.
// The legal rubric lives in versioned YAML rather than inline literals, so
// rule changes never touch orchestration code.
package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var embeddedCatalogue []byte

type Article struct {
	Ref   string `yaml:"ref"`
	Group string `yaml:"group"`
	Topic string `yaml:"topic"`
}

type ProbabilityBand struct {
	Min     int    `yaml:"min"`
	Meaning string `yaml:"meaning"`
}

type Catalogue struct {
	Jurisdiction   string            `yaml:"jurisdiction"`
	CitationFormat string            `yaml:"citationFormat"`
	Groups         map[string]string `yaml:"groups"`
	Articles       []Article         `yaml:"articles"`
	Principles     []string          `yaml:"principles"`
	ReportSections []string          `yaml:"reportSections"`
	Bands          []ProbabilityBand `yaml:"winProbabilityBands"`
}

// LoadCatalogue returns the built-in legal catalogue.
func LoadCatalogue() (*Catalogue, error) {
	return parseCatalogue(embeddedCatalogue)
}

// LoadCatalogueFile reads a catalogue override from disk.
func LoadCatalogueFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return parseCatalogue(data)
}

func parseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	if len(c.Articles) == 0 {
		return nil, fmt.Errorf("catalogue has no articles")
	}
	if len(c.ReportSections) == 0 {
		return nil, fmt.Errorf("catalogue has no report sections")
	}
	return &c, nil
}

// ArticlesInGroups returns the catalogue entries belonging to any of the
// given groups, in catalogue order. Empty groups means all articles.
func (c *Catalogue) ArticlesInGroups(groups ...string) []Article {
	if len(groups) == 0 {
		return c.Articles
	}
	want := make(map[string]bool, len(groups))
	for _, g := range groups {
		want[g] = true
	}
	var out []Article
	for _, a := range c.Articles {
		if want[a.Group] {
			out = append(out, a)
		}
	}
	return out
}

var articleNumRe = regexp.MustCompile(`\d+[a-z]?`)

// Explain implements CitationResolver against the catalogue. Both citation
// syntaxes ("Art. 267 CO", "OR Art. 267") resolve by article number.
func (c *Catalogue) Explain(ctx context.Context, article string) (string, error) {
	num := articleNumRe.FindString(article)
	if num == "" {
		return "", fmt.Errorf("unrecognized citation %q", article)
	}
	for _, a := range c.Articles {
		if articleNumRe.FindString(a.Ref) == num {
			return a.Topic, nil
		}
	}
	return "", fmt.Errorf("article %s not in catalogue", article)
}

func (c *Catalogue) articleList(groups ...string) string {
	var sb strings.Builder
	for _, a := range c.ArticlesInGroups(groups...) {
		fmt.Fprintf(&sb, "- %s: %s\n", a.Ref, a.Topic)
	}
	return sb.String()
}

func (c *Catalogue) principleList() string {
	var sb strings.Builder
	for _, p := range c.Principles {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	return sb.String()
}

func (c *Catalogue) bandList() string {
	var sb strings.Builder
	for _, b := range c.Bands {
		fmt.Fprintf(&sb, "- %d%%+: %s\n", b.Min, b.Meaning)
	}
	return sb.String()
}
