package models

type Department struct {
	DepartmentID string `json:"department_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
}
