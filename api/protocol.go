package api

import "errors"

const taskBodyMaxSize = 64 * 1024 // 64 KiB

var (
	errInvalidBody  = errors.New("invalid body")
	errBodyTooLarge = errors.New("request body too large")
)

// POST /api/tasks response body
type createTaskResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// PUT and DELETE /api/tasks/:id response body
type successResponse struct {
	Success bool `json:"success"`
}

// POST /api/tasks/seed response body
type seedResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
