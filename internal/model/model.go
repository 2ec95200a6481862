// Package model holds the data types shared across the scan pipeline:
// jobs handed out by the mainframe, the rule metadata attached to a match,
// and the per-file/per-distribution/per-package results the pipeline
// aggregates as it scans.
package model

import "sort"

// Job is a single package assignment from the mainframe. Immutable once
// fetched.
type Job struct {
	Hash          string   `json:"hash"`
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Distributions []string `json:"distributions"`
}

// RuleScore pairs a matched rule's identifier with its weight metadata.
// Two RuleScores are equal iff both fields match; this is what lets the
// aggregator deduplicate the same rule matching several files.
type RuleScore struct {
	Name   string
	Weight int
}

// FileScanResult is every rule that matched a single relative path inside
// a distribution archive.
type FileScanResult struct {
	Path  string
	Rules []RuleScore
}

// Score sums the weights of every rule that matched this file.
func (f FileScanResult) Score() int {
	total := 0
	for _, r := range f.Rules {
		total += r.Weight
	}
	return total
}

// DistributionScanResult is the outcome of scanning one distribution
// archive: a base inspector URL plus the per-file results, in archive
// order.
type DistributionScanResult struct {
	BaseInspectorURL string
	Files            []FileScanResult
}

// uniqueRuleScores returns the set of distinct (name, weight) pairs across
// every file in the distribution. Duplicates — the same rule matching more
// than one file — are counted once.
func (d DistributionScanResult) uniqueRuleScores() map[RuleScore]struct{} {
	seen := make(map[RuleScore]struct{})
	for _, f := range d.Files {
		for _, r := range f.Rules {
			seen[r] = struct{}{}
		}
	}
	return seen
}

// TotalScore sums the weight of every distinct RuleScore matched anywhere
// in the distribution. A rule that matches three files still contributes
// its weight exactly once.
func (d DistributionScanResult) TotalScore() int {
	total := 0
	for r := range d.uniqueRuleScores() {
		total += r.Weight
	}
	return total
}

// MatchedRuleNames returns the set of rule identifiers matched anywhere in
// the distribution.
func (d DistributionScanResult) MatchedRuleNames() map[string]struct{} {
	names := make(map[string]struct{})
	for r := range d.uniqueRuleScores() {
		names[r.Name] = struct{}{}
	}
	return names
}

// MostMaliciousFile returns the file with the highest score, breaking ties
// by first occurrence in archive order. Returns false if the distribution
// has no files.
func (d DistributionScanResult) MostMaliciousFile() (FileScanResult, bool) {
	if len(d.Files) == 0 {
		return FileScanResult{}, false
	}
	best := d.Files[0]
	bestScore := best.Score()
	for _, f := range d.Files[1:] {
		if s := f.Score(); s > bestScore {
			best, bestScore = f, s
		}
	}
	return best, true
}

// InspectorURL concatenates the base inspector URL with the relative path
// of the most malicious file. Returns "" if the distribution has no files,
// or if it has files but none of them matched any rule — a most malicious
// file always exists for a non-empty distribution, but it's only worth
// pointing at when it actually matched something (spec §8).
func (d DistributionScanResult) InspectorURL() string {
	f, ok := d.MostMaliciousFile()
	if !ok || len(f.Rules) == 0 {
		return ""
	}
	return d.BaseInspectorURL + f.Path
}

// PackageScanResult is the final, per-package aggregation across every
// distribution scanned for a job.
type PackageScanResult struct {
	Name          string
	Version       string
	RulesetHash   string
	Distributions []DistributionScanResult
}

// WinningDistribution is the distribution with the highest TotalScore,
// ties broken by order within Distributions (which mirrors job.Distributions
// order, per §5's sequential-scan ordering guarantee).
func (p PackageScanResult) WinningDistribution() (DistributionScanResult, bool) {
	if len(p.Distributions) == 0 {
		return DistributionScanResult{}, false
	}
	best := p.Distributions[0]
	bestScore := best.TotalScore()
	for _, d := range p.Distributions[1:] {
		if s := d.TotalScore(); s > bestScore {
			best, bestScore = d, s
		}
	}
	return best, true
}

// Score is the winning distribution's total score, or 0 if the package has
// no distributions.
func (p PackageScanResult) Score() int {
	d, ok := p.WinningDistribution()
	if !ok {
		return 0
	}
	return d.TotalScore()
}

// InspectorURL is the winning distribution's inspector URL, or "" if no
// file in it matched any rule.
func (p PackageScanResult) InspectorURL() string {
	d, ok := p.WinningDistribution()
	if !ok {
		return ""
	}
	return d.InspectorURL()
}

// RulesMatched is the union of matched rule identifiers across every
// distribution, not just the winner.
func (p PackageScanResult) RulesMatched() []string {
	names := make(map[string]struct{})
	for _, d := range p.Distributions {
		for n := range d.MatchedRuleNames() {
			names[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
