package dto

type CreateLabelRequest struct {
	Name   string `json:"name" binding:"required"`
	Color  string `json:"color"`
	Prompt string `json:"prompt"`
}
