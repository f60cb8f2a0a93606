package model

import "time"

// ConnectivityState 表示后端可达性。
type ConnectivityState string

const (
	ConnectivityConnecting ConnectivityState = "connecting"
	ConnectivityConnected  ConnectivityState = "connected"
	ConnectivityError      ConnectivityState = "error"
)

// ConnectivitySnapshot 是最近一次探测的结果。
type ConnectivitySnapshot struct {
	State     ConnectivityState `json:"state"`
	LastError string            `json:"last_error,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}
