package web

import "github.com/dukex/sfcflow/pkg/models"

// SaveGraphRequest is the body of PUT /graphs/:id.
type SaveGraphRequest struct {
	Name        string                   `json:"name"        validate:"required,min=1"`
	Description string                   `json:"description"`
	Steps       []*models.StepDefinition `json:"steps"       validate:"required,min=2,dive,required"`
	Edges       []*models.EdgeDefinition `json:"edges"       validate:"required,min=1,dive,required"`
}

// GraphListResponse is the body of GET /graphs.
type GraphListResponse struct {
	Graphs     []*models.GraphDefinition `json:"graphs"`
	TotalCount int                       `json:"total_count"`
}
