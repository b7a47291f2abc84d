package protocol

type Response struct {
	Sequence uint        `json:"sequence"`
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
}

// SessionResult 一次调试会话的结果以及过程中产生的事件
type SessionResult struct {
	Report interface{}   `json:"report"`
	Events []interface{} `json:"events"`
}
