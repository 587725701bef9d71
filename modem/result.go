package modem

import (
	"strconv"
	"strings"
)

// ResultCode classifies a line sent by the modem.
type ResultCode uint8

const (
	// ResultNone marks a line that is not a result code.
	ResultNone ResultCode = iota
	ResultOK
	ResultConnect
	ResultRing
	ResultNoCarrier
	ResultError
	ResultNoDialtone
	ResultBusy
	ResultNoAnswer
)

var resultWords = []struct {
	word string
	code ResultCode
}{
	{"OK", ResultOK},
	{"CONNECT", ResultConnect},
	{"RING", ResultRing},
	{"NO CARRIER", ResultNoCarrier},
	{"ERROR", ResultError},
	{"NO DIALTONE", ResultNoDialtone},
	{"NO DIAL TONE", ResultNoDialtone},
	{"BUSY", ResultBusy},
	{"NO ANSWER", ResultNoAnswer},
}

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "OK"
	case ResultConnect:
		return "CONNECT"
	case ResultRing:
		return "RING"
	case ResultNoCarrier:
		return "NO CARRIER"
	case ResultError:
		return "ERROR"
	case ResultNoDialtone:
		return "NO DIALTONE"
	case ResultBusy:
		return "BUSY"
	case ResultNoAnswer:
		return "NO ANSWER"
	default:
		return "NONE"
	}
}

// Result is a parsed result-code line.
type Result struct {
	Code ResultCode
	// Speed is the rate reported by "CONNECT <speed>", 0 when absent.
	Speed int
	// Detail is any text after the code word, e.g. "9600/ARQ".
	Detail string
}

// ParseResult classifies a trimmed line. It reports false when the line is
// not a result code, such as an echoed command or remote text.
func ParseResult(line string) (Result, bool) {
	line = strings.TrimSpace(line)
	upper := strings.ToUpper(line)

	for _, rw := range resultWords {
		if upper != rw.word && !strings.HasPrefix(upper, rw.word+" ") {
			continue
		}
		// only CONNECT carries a suffix
		if rw.code != ResultConnect && upper != rw.word {
			continue
		}

		res := Result{Code: rw.code}
		if rest := strings.TrimSpace(line[len(rw.word):]); rest != "" {
			res.Detail = rest
			speed := rest
			if i := strings.IndexAny(speed, "/ "); i >= 0 {
				speed = speed[:i]
			}
			if n, err := strconv.Atoi(speed); err == nil {
				res.Speed = n
			}
		}

		return res, true
	}

	return Result{}, false
}
