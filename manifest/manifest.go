// Package manifest reads requirements-style integration manifests.
//
// A manifest is a flat text file of one requirement specifier per line.
// Blank lines and comment lines beginning with # are permitted. A specifier
// is an integration name optionally followed by comma separated version
// constraints, eg:
//
//	# core
//	api
//	sun>=1.0
//	hue>=1.2,<2.0
//
// A node launched from a manifest runs exactly the named integrations, after
// checking each constraint against the integration's declared version.
package manifest

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	version "github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

// A Requirement is one manifest line: an integration name and an optional
// raw constraint expression.
type Requirement struct {
	Name       string
	Constraint string
}

var reName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*`)

// String re-serializes the requirement in manifest form.
func (r Requirement) String() string {
	return r.Name + r.Constraint
}

// Constraints parses the constraint expression. An empty expression matches
// any version.
func (r Requirement) Constraints() (version.Constraints, error) {
	if r.Constraint == "" {
		return nil, nil
	}
	// requirements files spell equality ==, go-version spells it =
	expr := strings.Replace(r.Constraint, "==", "=", -1)
	constraints, err := version.NewConstraint(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "requirement %s", r.Name)
	}
	return constraints, nil
}

// Check reports whether v satisfies the requirement's constraints.
func (r Requirement) Check(v string) error {
	constraints, err := r.Constraints()
	if err != nil {
		return err
	}
	if constraints == nil {
		return nil
	}
	ver, err := version.NewVersion(v)
	if err != nil {
		return errors.Wrapf(err, "requirement %s", r.Name)
	}
	if !constraints.Check(ver) {
		return errors.Errorf("requirement %s: version %s does not satisfy %s", r.Name, v, r.Constraint)
	}
	return nil
}

// A Manifest is an ordered list of requirements.
type Manifest struct {
	Requirements []Requirement
}

// Parse reads a manifest from raw bytes.
func Parse(data []byte) (*Manifest, error) {
	return Read(strings.NewReader(string(data)))
}

// Read reads a manifest from a reader.
func Read(r io.Reader) (*Manifest, error) {
	self := &Manifest{}
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n += 1
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		req, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		self.Requirements = append(self.Requirements, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return self, nil
}

// Open reads a manifest file from disk.
func Open(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}

func parseLine(line string) (Requirement, error) {
	name := reName.FindString(line)
	if name == "" {
		return Requirement{}, errors.Errorf("invalid specifier: %q", line)
	}
	constraint := strings.TrimSpace(line[len(name):])
	req := Requirement{Name: name, Constraint: constraint}
	// validate the constraint expression up front
	if _, err := req.Constraints(); err != nil {
		return Requirement{}, err
	}
	return req, nil
}

// String re-serializes the manifest, one requirement per line. Comments and
// blank lines are not preserved; the set of (name, constraint) pairs is.
func (self *Manifest) String() string {
	lines := make([]string, len(self.Requirements))
	for i, req := range self.Requirements {
		lines[i] = req.String()
	}
	return strings.Join(lines, "\n") + "\n"
}

// Names returns the integration names, in manifest order.
func (self *Manifest) Names() []string {
	names := make([]string, len(self.Requirements))
	for i, req := range self.Requirements {
		names[i] = req.Name
	}
	return names
}

// Set returns the (name, constraint) pairs order-insensitively.
func (self *Manifest) Set() []Requirement {
	reqs := make([]Requirement, len(self.Requirements))
	copy(reqs, self.Requirements)
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].Name != reqs[j].Name {
			return reqs[i].Name < reqs[j].Name
		}
		return reqs[i].Constraint < reqs[j].Constraint
	})
	return reqs
}
