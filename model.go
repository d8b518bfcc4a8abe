package robotmodel

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"
)

//go:embed data/panda.json
var pandaModelJSON []byte

// RobotModel is the read-only view of a kinematic robot description exposed through a Surface.
type RobotModel interface {
	Name() string
	ModelFrame() string
	IsEmpty() bool
	PrintModelInfo(w io.Writer) error
	RootJointName() string
}

type linkDescription struct {
	ID          string    `json:"id"`
	Parent      string    `json:"parent"`
	Translation r3.Vector `json:"translation"`
}

type jointDescription struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Parent string  `json:"parent"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// modelDescription holds the structural fields of an rdk kinematics file that the
// rdk Model does not expose once parsed.
type modelDescription struct {
	Name   string             `json:"name"`
	Links  []linkDescription  `json:"links,omitempty"`
	Joints []jointDescription `json:"joints,omitempty"`
}

// kinematicModel implements RobotModel on top of an rdk referenceframe.Model.
type kinematicModel struct {
	name  string
	desc  modelDescription
	frame referenceframe.Model // nil for descriptions without links or joints
}

// LoadModel parses an rdk kinematics JSON description. modelName overrides the
// name in the description when non-empty.
func LoadModel(data []byte, modelName string) (RobotModel, error) {
	if len(data) == 0 {
		return nil, referenceframe.ErrNoModelInformation
	}

	var desc modelDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal model description")
	}

	m := &kinematicModel{name: desc.Name, desc: desc}
	if modelName != "" {
		m.name = modelName
	}
	if m.name == "" {
		return nil, errors.New("model description has no name")
	}
	if err := checkModelName(m.name); err != nil {
		return nil, err
	}

	if len(desc.Links) == 0 && len(desc.Joints) == 0 {
		return m, nil
	}

	frame, err := referenceframe.UnmarshalModelJSON(data, m.name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build kinematic model %q", m.name)
	}
	m.frame = frame
	m.name = frame.Name()
	return m, nil
}

// checkModelName rejects names containing whitespace, which cannot be used as frame names.
func checkModelName(name string) error {
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return errors.Errorf("model_name must not contain whitespace, got %q", name)
	}
	return nil
}

// LoadModelFile reads and parses the kinematics description stored at path.
func LoadModelFile(path, modelName string) (RobotModel, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model file")
	}
	return LoadModel(data, modelName)
}

// DefaultModel returns the embedded Franka Emika Panda description.
func DefaultModel() (RobotModel, error) {
	return LoadModel(pandaModelJSON, "")
}

func (m *kinematicModel) Name() string {
	return m.name
}

// ModelFrame is the link attached directly to the world frame.
func (m *kinematicModel) ModelFrame() string {
	root := m.rootLink()
	if root == nil {
		return ""
	}
	return root.ID
}

func (m *kinematicModel) IsEmpty() bool {
	return len(m.desc.Links) == 0 && len(m.desc.Joints) == 0
}

// RootJointName returns the first joint hanging off the root link. A model with
// no such joint is attached to the world by a fixed joint named after the root link.
func (m *kinematicModel) RootJointName() string {
	root := m.rootLink()
	if root == nil {
		return ""
	}
	for _, j := range m.desc.Joints {
		if j.Parent == root.ID {
			return j.ID
		}
	}
	return referenceframe.World + "_" + root.ID
}

func (m *kinematicModel) rootLink() *linkDescription {
	for i := range m.desc.Links {
		if m.desc.Links[i].Parent == referenceframe.World {
			return &m.desc.Links[i]
		}
	}
	return nil
}

func (m *kinematicModel) variableCount() int {
	if m.frame == nil {
		return 0
	}
	return len(m.frame.DoF())
}

func (m *kinematicModel) PrintModelInfo(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Model %s in frame %s, using %d variables\n", m.name, m.ModelFrame(), m.variableCount())

	fmt.Fprintf(&sb, "Root joint: '%s'\n", m.RootJointName())
	fmt.Fprintf(&sb, "Joints:\n")
	for _, j := range m.desc.Joints {
		fmt.Fprintf(&sb, "  '%s' (%s) parent '%s'\n", j.ID, j.Type, j.Parent)
		fmt.Fprintf(&sb, "    * bounds: [%g, %g]\n", j.Min, j.Max)
	}

	if m.frame != nil {
		fmt.Fprintf(&sb, "Variables:\n")
		for i, limit := range m.frame.DoF() {
			fmt.Fprintf(&sb, "  %d: [%.4f, %.4f]\n", i, limit.Min, limit.Max)
		}
	}

	fmt.Fprintf(&sb, "Links:\n")
	for _, l := range m.desc.Links {
		fmt.Fprintf(&sb, "  '%s' parent '%s'\n", l.ID, l.Parent)
		fmt.Fprintf(&sb, "    * origin: (%g, %g, %g) mm, %.3f mm from parent\n",
			l.Translation.X, l.Translation.Y, l.Translation.Z, l.Translation.Norm())
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
