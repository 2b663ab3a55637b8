package domain

type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindConfig
	ErrorKindTimeSync
	ErrorKindCurrentLimit
	ErrorKindApply
	ErrorKindConnection
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindConfig:
		return "config"
	case ErrorKindTimeSync:
		return "time_sync"
	case ErrorKindCurrentLimit:
		return "current_limit"
	case ErrorKindApply:
		return "apply"
	case ErrorKindConnection:
		return "connection"
	}
	return "unknown"
}

// Result is the outcome of a safety check or an apply call. Branch on IsOk
// and Kind; String is only for display.
type Result struct {
	kind    ErrorKind
	message string
}

func Ok() Result {
	return Result{}
}

func Err(kind ErrorKind, message string) Result {
	if kind == ErrorKindNone {
		kind = ErrorKindApply
	}
	return Result{kind: kind, message: message}
}

func (r Result) IsOk() bool {
	return r.kind == ErrorKindNone
}

func (r Result) Kind() ErrorKind {
	return r.kind
}

func (r Result) Message() string {
	return r.message
}

func (r Result) String() string {
	if r.IsOk() {
		return "OK"
	}
	return r.message
}
