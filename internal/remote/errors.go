package remote

import "fmt"

// NetworkError：传输失败、非 2xx 或响应无法解析
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: remote returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectionError：远端返回结构化的 result=error
type RejectionError struct {
	Op      string
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return e.Op + ": rejected by remote store"
	}
	return e.Op + ": " + e.Message
}
