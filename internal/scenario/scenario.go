// Package scenario describes producer frame trees in YAML and plays them through a
// framesim graph.
//
//	root: world
//	shuffle: 7
//	scalars:
//	  hip_yaw: 0
//	steps:
//	  - add:
//	      - {path: world/robot, building: true}
//	      - {path: world/robot/pelvis, translation: [0, 0, 0.9]}
//	      - path: world/robot/pelvis/hip
//	        inputs: {yaw: hip_yaw}
//	  - finish: [world/robot]
//	  - set: {hip_yaw: 0.5}
//	  - wait: 200ms
//
// Every step applies its fields in the order add, finish, set, wait; frames added in
// a step are flushed as one batch at the end of the add phase.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evan-idocoding/framekit/config"
)

// ErrInvalid is wrapped by every scenario validation failure.
var ErrInvalid = errors.New("scenario: invalid")

// Scenario is a decoded scenario file.
type Scenario struct {
	Root string `yaml:"root"`

	// Shuffle, when non-zero, seeds a random reordering of every flushed batch.
	Shuffle int64 `yaml:"shuffle"`

	// Scalars declares the named inputs of variable frames with their initial values.
	Scalars map[string]float64 `yaml:"scalars"`

	Steps []Step `yaml:"steps"`
}

// Step is one unit of producer activity.
type Step struct {
	Add    []FrameSpec        `yaml:"add"`
	Finish []string           `yaml:"finish"`
	Set    map[string]float64 `yaml:"set"`
	Wait   config.Duration    `yaml:"wait"`
}

// FrameSpec declares one frame. A frame with Inputs is variable, otherwise fixed.
type FrameSpec struct {
	Path        string      `yaml:"path"`
	Building    bool        `yaml:"building"`
	Translation [3]float64  `yaml:"translation"`
	YPR         [3]float64  `yaml:"ypr"`
	Inputs      *InputsSpec `yaml:"inputs"`
}

// InputsSpec names the scalars driving a variable frame. Empty names leave a slot
// unbound. Quaternion components and yaw/pitch/roll are mutually exclusive.
type InputsSpec struct {
	X     string `yaml:"x"`
	Y     string `yaml:"y"`
	Z     string `yaml:"z"`
	Yaw   string `yaml:"yaw"`
	Pitch string `yaml:"pitch"`
	Roll  string `yaml:"roll"`
	QX    string `yaml:"qx"`
	QY    string `yaml:"qy"`
	QZ    string `yaml:"qz"`
	QS    string `yaml:"qs"`
}

func (in *InputsSpec) quaternion() bool {
	return in.QX != "" || in.QY != "" || in.QZ != "" || in.QS != ""
}

func (in *InputsSpec) names() []string {
	return []string{in.X, in.Y, in.Z, in.Yaw, in.Pitch, in.Roll, in.QX, in.QY, in.QZ, in.QS}
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario: %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	sc := &Scenario{Root: "world"}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks that paths are well formed and hang off the root, that every
// referenced scalar is declared and that no path is added twice.
func (sc *Scenario) Validate() error {
	if sc.Root == "" || strings.Contains(sc.Root, "/") {
		return fmt.Errorf("%w: root %q", ErrInvalid, sc.Root)
	}
	var errs []error
	seen := map[string]bool{sc.Root: true}
	for i, st := range sc.Steps {
		if st.Wait < 0 {
			errs = append(errs, fmt.Errorf("%w: step %d: negative wait", ErrInvalid, i))
		}
		for _, f := range st.Add {
			if !strings.HasPrefix(f.Path, sc.Root+"/") || strings.HasSuffix(f.Path, "/") || strings.Contains(f.Path, "//") {
				errs = append(errs, fmt.Errorf("%w: step %d: path %q", ErrInvalid, i, f.Path))
				continue
			}
			if seen[f.Path] {
				errs = append(errs, fmt.Errorf("%w: step %d: duplicate path %q", ErrInvalid, i, f.Path))
			}
			seen[f.Path] = true
			if f.Inputs == nil {
				continue
			}
			if f.Inputs.quaternion() && (f.Inputs.Yaw != "" || f.Inputs.Pitch != "" || f.Inputs.Roll != "") {
				errs = append(errs, fmt.Errorf("%w: step %d: %q mixes quaternion and yaw/pitch/roll", ErrInvalid, i, f.Path))
			}
			for _, n := range f.Inputs.names() {
				if _, ok := sc.Scalars[n]; n != "" && !ok {
					errs = append(errs, fmt.Errorf("%w: step %d: %q uses undeclared scalar %q", ErrInvalid, i, f.Path, n))
				}
			}
		}
		for _, p := range st.Finish {
			if !seen[p] {
				errs = append(errs, fmt.Errorf("%w: step %d: finish of unknown path %q", ErrInvalid, i, p))
			}
		}
		for n := range st.Set {
			if _, ok := sc.Scalars[n]; !ok {
				errs = append(errs, fmt.Errorf("%w: step %d: set of undeclared scalar %q", ErrInvalid, i, n))
			}
		}
	}
	return errors.Join(errs...)
}

// FrameCount returns the number of frames the scenario adds.
func (sc *Scenario) FrameCount() int {
	n := 0
	for _, st := range sc.Steps {
		n += len(st.Add)
	}
	return n
}
