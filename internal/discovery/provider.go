package discovery

import (
	"fmt"
	"path/filepath"

	"pmlunit/internal/domain"
	"pmlunit/internal/logging"
)

// Provider discovers test cases under a list of search roots, the way the
// PMLLIB search path is laid out.
type Provider struct {
	scanner *Scanner
	parser  *Parser
	logger  logging.Logger
}

// LoadResult holds the parsed test cases and the per-file problems met while
// loading them. A broken file never hides the others.
type LoadResult struct {
	TestCases []*domain.TestCase
	Errors    []error
}

// NewProvider creates a new Provider
func NewProvider(scanner *Scanner, parser *Parser, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Provider{scanner: scanner, parser: parser, logger: logger}
}

// Load scans every root and parses every test definition file found. Files
// reachable from more than one root are parsed once.
func (p *Provider) Load(roots []string) *LoadResult {
	result := &LoadResult{}
	seen := make(map[string]bool)

	for _, root := range roots {
		files, err := p.scanner.Scan(root)
		if err != nil {
			p.logger.Warn("skipping search path", "root", root, "error", err)
			result.Errors = append(result.Errors, err)
			continue
		}

		for _, file := range files {
			key := file
			if abs, err := filepath.Abs(file); err == nil {
				key = abs
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			testCase, err := p.parser.ParseFile(file)
			if err != nil {
				p.logger.Warn("failed to parse test case", "file", file, "error", err)
				result.Errors = append(result.Errors, err)
				continue
			}
			p.logger.Debug("parsed test case", "file", file, "name", testCase.Name(), "tests", testCase.Len())
			result.TestCases = append(result.TestCases, testCase)
		}
	}
	return result
}

// Catalog returns a catalog over the loaded test cases.
func (r *LoadResult) Catalog() *domain.Catalog {
	return domain.NewCatalog(r.TestCases)
}

// Summary describes the load outcome in one line.
func (r *LoadResult) Summary() string {
	tests := 0
	for _, tc := range r.TestCases {
		tests += tc.Len()
	}
	return fmt.Sprintf("%d test case(s), %d test(s), %d problem(s)", len(r.TestCases), tests, len(r.Errors))
}
