package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/sfcflow/pkg/graph"
	"github.com/dukex/sfcflow/pkg/models"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

type hclGraph struct {
	ID          string    `hcl:"id,optional"`
	Name        string    `hcl:"name,optional"`
	Description string    `hcl:"description,optional"`
	Steps       []hclStep `hcl:"step,block"`
	Edges       []hclEdge `hcl:"edge,block"`
}

type hclStep struct {
	ID     string    `hcl:"id,label"`
	Kind   string    `hcl:"kind"`
	Name   string    `hcl:"name,optional"`
	Config cty.Value `hcl:"config,optional"`
}

type hclEdge struct {
	From   string `hcl:"from"`
	To     string `hcl:"to"`
	Branch string `hcl:"branch,optional"`
}

// Load reads and decodes a graph definition file.
func Load(path string) (*models.GraphDefinition, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file %s: %w", path, err)
	}

	return Decode(path, body)
}

// Decode parses a graph definition. Files ending in .hcl are HCL, anything
// else is a JSON document checked against the definition schema. A graph
// without an id takes the file name.
func Decode(filename string, body []byte) (*models.GraphDefinition, error) {
	var (
		definition *models.GraphDefinition
		err        error
	)

	if strings.EqualFold(filepath.Ext(filename), ".hcl") {
		definition, err = DecodeHCL(filename, body)
	} else {
		definition, err = graph.ParseDefinition(body)
	}

	if err != nil {
		return nil, err
	}

	if definition.ID == "" {
		definition.ID = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	return definition, nil
}

// DecodeHCL parses a graph written as
//
//	name = "Fill tank"
//	step "start" {
//	  kind = "start"
//	}
//	step "fill" {
//	  kind   = "setvalue"
//	  config = { target_address = "tank.level", value_type = "numeric", start_value = 0, end_value = 80, duration_seconds = 30 }
//	}
//	edge {
//	  from = "start"
//	  to   = "fill"
//	}
func DecodeHCL(filename string, body []byte) (*models.GraphDefinition, error) {
	var document hclGraph

	err := hclsimple.Decode(filename, body, nil, &document)
	if err != nil {
		return nil, graph.NewDocumentError("failed to decode %s: %v", filename, err)
	}

	definition := &models.GraphDefinition{
		ID:          document.ID,
		Name:        document.Name,
		Description: document.Description,
		Steps:       make([]*models.StepDefinition, 0, len(document.Steps)),
		Edges:       make([]*models.EdgeDefinition, 0, len(document.Edges)),
	}

	for _, step := range document.Steps {
		config, err := configMap(step.Config)
		if err != nil {
			return nil, graph.NewDocumentError("step '%s' config: %v", step.ID, err)
		}

		definition.Steps = append(definition.Steps, &models.StepDefinition{
			ID:     step.ID,
			Kind:   models.StepKind(step.Kind),
			Name:   step.Name,
			Config: config,
		})
	}

	for _, edge := range document.Edges {
		definition.Edges = append(definition.Edges, &models.EdgeDefinition{
			From:   edge.From,
			To:     edge.To,
			Branch: models.Branch(edge.Branch),
		})
	}

	return definition, nil
}

func configMap(value cty.Value) (map[string]any, error) {
	if value.IsNull() {
		return nil, nil
	}

	if !value.IsWhollyKnown() {
		return nil, fmt.Errorf("config must be a constant object")
	}

	if !value.Type().IsObjectType() && !value.Type().IsMapType() {
		return nil, fmt.Errorf("config must be an object, got %s", value.Type().FriendlyName())
	}

	data, err := ctyjson.SimpleJSONValue{Value: value}.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var config map[string]any

	err = json.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
