package common

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type Msg struct {
	Message string `json:"message"`
}

func WriteMsg(w http.ResponseWriter, msg string, code int) {
	w.WriteHeader(code)
	WriteRespJSON(w, Msg{msg})
}

// WriteError answers with the banner text and status of the error's kind.
func WriteError(w http.ResponseWriter, err error) {
	WriteMsg(w, UserMessage(err), StatusFor(err))
}

// ParseReqBody decodes a JSON body into ptr. Malformed input is a validation
// failure of the "body" field.
func ParseReqBody(body io.Reader, ptr interface{}) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(ptr); err != nil {
		if err == io.EOF {
			return Invalid("body", "is empty")
		}
		return Invalid("body", "malformed JSON")
	}
	return nil
}

func WriteRespJSON(w http.ResponseWriter, data interface{}) {
	resp, err := json.Marshal(data)
	if err != nil {
		zap.S().Errorf("common: JSON marshaling failed: %v", err)
		WriteMsg(w, "response failed", http.StatusInternalServerError)
		return
	}
	if _, err = w.Write(resp); err != nil {
		zap.S().Errorf("common: failed writing response: %v", err)
	}
}

// Blank reports whether s has no visible characters.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
