package executor

import "encoding/base64"

// encodeError narrows the original's base64(traceback) to a base64'd
// formatted error string; Go has no traceback object to carry across
// the wire.
func encodeError(err error) string {
	return base64.StdEncoding.EncodeToString([]byte(err.Error()))
}
