package jobs

import (
	"fmt"
	"sort"

	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/engine"
)

// Runner is a fully configured job. engine.Job satisfies it for any key,
// value and result types.
type Runner interface {
	Run(inputs []string, opts engine.Options) (*engine.Report, error)
}

// Factory builds a runner from named string parameters.
type Factory func(params map[string]string) (Runner, error)

type Entry struct {
	Name     string
	Describe string
	Params   []string
	Factory  Factory

	// Format is the input format the job expects.
	Format core.Format
}

var registry = make(map[string]Entry)

func Register(entry Entry) error {
	if entry.Name == "" || entry.Factory == nil {
		return fmt.Errorf("job must have a name and a factory")
	}
	if _, exists := registry[entry.Name]; exists {
		return fmt.Errorf("job already registered: %s", entry.Name)
	}
	registry[entry.Name] = entry
	return nil
}

// MustRegister is Register for package init functions.
func MustRegister(entry Entry) {
	if err := Register(entry); err != nil {
		panic(err)
	}
}

func Get(name string) (Entry, error) {
	entry, exists := registry[name]
	if !exists {
		return Entry{}, fmt.Errorf("job not found: %s", name)
	}
	return entry, nil
}

// ForFormat returns the job registered for the given input format. It fails
// when none or more than one job reads that format.
func ForFormat(format core.Format) (Entry, error) {
	var matches []Entry
	for _, entry := range registry {
		if entry.Format == format {
			matches = append(matches, entry)
		}
	}
	switch len(matches) {
	case 0:
		return Entry{}, fmt.Errorf("no job reads %s input", format)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, fmt.Errorf("several jobs read %s input, choose one with -job", format)
	}
}

// List returns registered job names in sorted order.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build validates params against the entry's declared parameters and calls
// its factory.
func (e Entry) Build(params map[string]string) (Runner, error) {
	for _, name := range e.Params {
		if params[name] == "" {
			return nil, fmt.Errorf("%w: job %s requires parameter %q", core.ErrInvalidParameter, e.Name, name)
		}
	}
	return e.Factory(params)
}
