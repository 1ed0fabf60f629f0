package discovery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"pmlunit/internal/domain"
)

// assertType is the declared parameter type that marks a test method.
const assertType = "PmlAssert"

var (
	objectPattern   = regexp.MustCompile(`(?im)^[ \t]*define\s+object\s+(\w+)[ \t]*(?:--.*)?$`)
	methodPattern   = regexp.MustCompile(`(?im)^[ \t]*define\s+method\s+\.(\w+)\s*\(([^)]*)\)`)
	argumentPattern = regexp.MustCompile(`(?i)^\s*!\w+\s+is\s+(\w+)\s*$`)
)

// Parser recovers a test catalog from PML object definition source. It only
// understands object and method boundaries and method signatures.
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses a single .pmlobj file.
func (p *Parser) ParseFile(path string) (*domain.TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	defer f.Close()
	return p.Parse(path, f)
}

// Parse parses source text into a TestCase. The file name is stored verbatim.
// It fails with a *domain.ParserError unless the source contains exactly one
// object definition outside comments, followed by all method definitions.
func (p *Parser) Parse(fileName string, source io.Reader) (*domain.TestCase, error) {
	if fileName == "" {
		return nil, errors.New("file name is required")
	}
	if source == nil {
		return nil, errors.New("source is required")
	}

	content, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", fileName, err)
	}
	text := stripComments(string(content))

	objects := objectPattern.FindAllStringSubmatchIndex(text, -1)
	switch len(objects) {
	case 0:
		return nil, &domain.ParserError{FileName: fileName, Reason: "no object definition found"}
	case 1:
	default:
		return nil, &domain.ParserError{
			FileName: fileName,
			Line:     lineAt(text, objects[1][0]),
			Reason:   fmt.Sprintf("found %d object definitions, expected exactly one", len(objects)),
		}
	}
	object := objects[0]
	name := strings.TrimSpace(text[object[2]:object[3]])

	methods := methodPattern.FindAllStringSubmatchIndex(text, -1)
	var hasSetUp, hasTearDown bool
	var tests []method
	for _, m := range methods {
		line := lineAt(text, m[0])
		if m[0] < object[0] {
			return nil, &domain.ParserError{FileName: fileName, Line: line, Reason: "method definition before object definition"}
		}
		md := method{
			name:   text[m[2]:m[3]],
			params: splitParameters(text[m[4]:m[5]]),
			line:   line,
		}
		switch {
		case md.isLifecycle("setUp"):
			hasSetUp = true
		case md.isLifecycle("tearDown"):
			hasTearDown = true
		case md.isTest():
			tests = append(tests, md)
		}
	}

	testCase := domain.NewTestCase(name, fileName, hasSetUp, hasTearDown)
	for _, md := range tests {
		if _, err := testCase.AddTest(md.name, md.line); err != nil {
			return nil, &domain.ParserError{FileName: fileName, Line: md.line, Reason: "invalid test method", Err: err}
		}
	}
	return testCase, nil
}

type method struct {
	name   string
	params []string
	line   int
}

func (m method) isLifecycle(name string) bool {
	return len(m.params) == 0 && strings.EqualFold(m.name, name)
}

func (m method) isTest() bool {
	if len(m.name) < 4 || !strings.EqualFold(m.name[:4], "test") {
		return false
	}
	if len(m.params) != 1 {
		return false
	}
	match := argumentPattern.FindStringSubmatch(m.params[0])
	return match != nil && strings.EqualFold(match[1], assertType)
}

func splitParameters(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	return strings.Split(list, ",")
}

// stripComments blanks every line of a $( ... $) region. Line count is kept
// so that offsets still map to source lines.
func stripComments(text string) string {
	lines := strings.Split(text, "\n")
	inComment := false
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		lines[i] = line
		if !inComment {
			open := strings.Index(line, "$(")
			if open < 0 {
				continue
			}
			inComment = !strings.Contains(line[open+2:], "$)")
			lines[i] = ""
			continue
		}
		if strings.Contains(line, "$)") {
			inComment = false
		}
		lines[i] = ""
	}
	return strings.Join(lines, "\n")
}

func lineAt(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}
