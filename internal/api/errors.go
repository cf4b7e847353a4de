package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error is a transport failure: the request never completed, or the service
// answered with a non-2xx status.
type Error struct {
	Op     string // "list", "search", "delete", "create-text", "create-file", "stats"
	Status int    // 0 when no response was received
	Detail string // server-provided detail, if any
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Status != 0:
		return fmt.Sprintf("HTTP error: %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": request failed"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// parseDetail extracts a human message from an error body. FastAPI sends
// {"detail": "..."} for handled errors and {"detail": [{"msg": ...}]} for
// request validation failures.
func parseDetail(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &list); err == nil {
		for _, item := range list {
			if m := strings.TrimSpace(item.Msg); m != "" {
				return m
			}
		}
	}
	return ""
}
